package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/internal/app"
	"github.com/polyarb/polyarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage scanner",
	Long: `Starts the scanner, which will:
1. Load the market universe and pre-resolve neg-risk routing
2. Subscribe to order books across the WebSocket pool
3. Detect arbitrage whenever ask(YES) + ask(NO) < 1 - threshold
4. Execute paired buy orders (live mode) or log them (dry run)

--live requires POLYMARKET_PRIVATE_KEY plus the L2 API credentials.`,
	RunE: runScanner,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "detect and log only, never submit (default)")
	runCmd.Flags().Bool("live", false, "submit real orders")
	runCmd.Flags().Bool("realtime", false, "stream order books over WebSocket (default)")
	runCmd.Flags().Bool("polling", false, "legacy polling mode")
}

func runScanner(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	live, _ := cmd.Flags().GetBool("live")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	polling, _ := cmd.Flags().GetBool("polling")

	if live && dryRun {
		return fmt.Errorf("--live and --dry-run are mutually exclusive")
	}
	if live {
		cfg.DryRun = false
	}
	if dryRun {
		cfg.DryRun = true
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{Polling: polling})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
