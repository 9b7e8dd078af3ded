package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/poller"
	"github.com/polyarb/polyarb/pkg/config"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single sweep and print the tightest spreads",
	RunE:  runScan,
}

var scanTop int

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVarP(&scanTop, "top", "n", 20, "How many markets to print")
}

type scanRow struct {
	slug     string
	combined decimal.Decimal
	profit   decimal.Decimal
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("warn")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc := markets.New(&markets.Config{
		Client:          markets.NewClient(cfg.GammaURL, logger),
		Logger:          logger,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MaxMarkets:      scanTop * 5,
	})

	selected, err := svc.Load(ctx)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}

	fmt.Printf("Sweeping %d markets...\n\n", len(selected))

	fetcher := poller.NewCLOBFetcher(cfg.CLOBURL)
	one := decimal.NewFromInt(1)
	rows := make([]scanRow, 0, len(selected))

	for _, m := range selected {
		yes, err := fetcher.FetchBook(ctx, m.YesToken.TokenID)
		if err != nil || yes.BestAsk == nil {
			continue
		}
		no, err := fetcher.FetchBook(ctx, m.NoToken.TokenID)
		if err != nil || no.BestAsk == nil {
			continue
		}

		combined := yes.BestAsk.Add(*no.BestAsk)
		rows = append(rows, scanRow{
			slug:     m.Slug,
			combined: combined,
			profit:   one.Sub(combined),
		})
	}

	// Tightest combined ask first
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].combined.LessThan(rows[j].combined)
	})

	if len(rows) > scanTop {
		rows = rows[:scanTop]
	}

	fmt.Printf("%-50s %10s %10s\n", "MARKET", "COMBINED", "SPREAD")
	for _, row := range rows {
		marker := ""
		if row.profit.GreaterThan(cfg.MinProfitThreshold) {
			marker = "  <-- ARBITRAGE"
		}
		fmt.Printf("%-50s %10s %9s%%%s\n",
			truncate(row.slug, 50),
			row.combined.StringFixed(4),
			row.profit.Mul(decimal.NewFromInt(100)).StringFixed(2),
			marker)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
