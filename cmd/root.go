package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyarb",
	Short: "Cross-side arbitrage scanner for binary prediction markets",
	Long: `polyarb watches binary prediction markets over live order-book
streams and races matched buy orders onto both sides whenever
ask(YES) + ask(NO) < 1.

The scanner multiplexes thousands of markets over a pool of WebSocket
connections, evaluates the inequality on every price change and executes
paired GTC orders sized against live liquidity and the cached balance.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env for local runs; env vars win.
		_ = godotenv.Load()
	},
}

// Execute runs the root command. Called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
