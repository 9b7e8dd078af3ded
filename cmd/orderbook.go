package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/internal/poller"
	"github.com/polyarb/polyarb/pkg/config"
)

var orderbookCmd = &cobra.Command{
	Use:   "orderbook <token_id>",
	Short: "Print the top of book for one token",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderbook,
}

func init() {
	rootCmd.AddCommand(orderbookCmd)
}

func runOrderbook(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokenID := args[0]
	update, err := poller.NewCLOBFetcher(cfg.CLOBURL).FetchBook(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}

	fmt.Printf("Token: %s\n", tokenID)
	if update.BestBid != nil {
		fmt.Printf("Best bid: %s\n", update.BestBid.StringFixed(4))
	} else {
		fmt.Println("Best bid: (empty)")
	}
	if update.BestAsk != nil {
		fmt.Printf("Best ask: %s", update.BestAsk.StringFixed(4))
		if update.AskSize != nil {
			fmt.Printf("  (size %s)", update.AskSize.StringFixed(2))
		}
		fmt.Println()
	} else {
		fmt.Println("Best ask: (empty)")
	}

	return nil
}
