package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/pkg/config"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the endpoints of a running scanner",
	RunE:  runDashboard,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(configCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Status:  http://localhost:%s/status\n", cfg.HTTPPort)
	fmt.Printf("Metrics: http://localhost:%s/metrics\n", cfg.HTTPPort)
	fmt.Printf("Health:  http://localhost:%s/health\n", cfg.HTTPPort)

	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	redact := func(s string) string {
		if s == "" {
			return "(unset)"
		}
		return "(set)"
	}

	fmt.Printf("dry_run:                   %v\n", cfg.DryRun)
	fmt.Printf("min_profit_threshold:      %s\n", cfg.MinProfitThreshold)
	fmt.Printf("max_position_size_usd:     %s\n", cfg.MaxPositionSizeUSD)
	fmt.Printf("min_liquidity_usd:         %s\n", cfg.MinLiquidityUSD)
	fmt.Printf("max_days_until_resolution: %d\n", cfg.MaxDaysUntilRes)
	fmt.Printf("num_ws_connections:        %d\n", cfg.NumWSConnections)
	fmt.Printf("poll_interval:             %s\n", cfg.PollInterval)
	fmt.Printf("ws_url:                    %s\n", cfg.WSURL)
	fmt.Printf("gamma_url:                 %s\n", cfg.GammaURL)
	fmt.Printf("clob_url:                  %s\n", cfg.CLOBURL)
	fmt.Printf("polygon_rpc:               %s\n", cfg.PolygonRPC)
	fmt.Printf("storage_mode:              %s\n", cfg.StorageMode)
	fmt.Printf("private_key:               %s\n", redact(cfg.PrivateKey))
	fmt.Printf("api_key:                   %s\n", redact(cfg.APIKey))
	fmt.Printf("api_secret:                %s\n", redact(cfg.APISecret))
	fmt.Printf("passphrase:                %s\n", redact(cfg.Passphrase))
	if proxyURL := cfg.Socks5ProxyURL(); proxyURL != nil {
		fmt.Printf("socks5_proxy:              %s\n", proxyURL.Host)
	} else {
		fmt.Printf("socks5_proxy:              (unset)\n")
	}

	return nil
}
