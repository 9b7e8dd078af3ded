package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/pkg/config"
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List the tracked market universe",
	RunE:  runMarkets,
}

var marketsLimit int

func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().IntVarP(&marketsLimit, "limit", "n", 50, "How many markets to print")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("warn")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	svc := markets.New(&markets.Config{
		Client:          markets.NewClient(cfg.GammaURL, logger),
		Logger:          logger,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MaxMarkets:      marketsLimit,
	})

	selected, err := svc.Load(ctx)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}

	fmt.Printf("%-60s %12s %9s %8s\n", "QUESTION", "LIQUIDITY", "NEG_RISK", "ENDS")
	for _, m := range selected {
		ends := "unknown"
		if days, ok := m.DaysUntilResolution(time.Now().UTC()); ok {
			ends = fmt.Sprintf("%dd", days)
		}
		fmt.Printf("%-60s %12s %9v %8s\n",
			truncate(m.Question, 60),
			m.Liquidity.StringFixed(0),
			m.NegRisk,
			ends)
	}

	fmt.Printf("\n%d markets (min liquidity $%s)\n", len(selected), cfg.MinLiquidityUSD.StringFixed(0))

	return nil
}
