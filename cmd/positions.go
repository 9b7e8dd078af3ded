package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/pkg/config"
	"github.com/polyarb/polyarb/pkg/wallet"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions",
	RunE:  runPositions,
}

var pnlCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Show unrealised P&L over open positions",
	RunE:  runPnl,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(pnlCmd)
}

func fetchPositions() ([]wallet.Position, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	addr, err := walletAddress(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger("warn")
	if err != nil {
		return nil, err
	}

	client, err := wallet.NewClient(cfg.PolygonRPC, cfg.DataAPIURL, addr, logger)
	if err != nil {
		return nil, fmt.Errorf("create wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return client.Positions(ctx)
}

func runPositions(cmd *cobra.Command, args []string) error {
	positions, err := fetchPositions()
	if err != nil {
		return err
	}

	if len(positions) == 0 {
		fmt.Println("No open positions")
		return nil
	}

	fmt.Printf("%-50s %-8s %10s %10s\n", "MARKET", "SIDE", "SIZE", "VALUE")
	for _, pos := range positions {
		fmt.Printf("%-50s %-8s %10.2f %9.2f$\n",
			truncate(pos.MarketSlug, 50), pos.Outcome, pos.Size, pos.Value)
	}

	return nil
}

func runPnl(cmd *cobra.Command, args []string) error {
	positions, err := fetchPositions()
	if err != nil {
		return err
	}

	totalValue, totalCost, totalPnl := 0.0, 0.0, 0.0
	for _, pos := range positions {
		totalValue += pos.Value
		totalCost += pos.InitialVal
		totalPnl += pos.CashPnL
	}

	fmt.Printf("Open positions:  %d\n", len(positions))
	fmt.Printf("Cost basis:      $%.2f\n", totalCost)
	fmt.Printf("Current value:   $%.2f\n", totalValue)
	fmt.Printf("Unrealised P&L:  $%.2f", totalPnl)
	if totalCost > 0 {
		fmt.Printf(" (%.1f%%)", totalPnl/totalCost*100)
	}
	fmt.Println()

	return nil
}
