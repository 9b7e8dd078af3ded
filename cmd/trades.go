package cmd

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/pkg/config"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Show recent execution attempts from storage",
	RunE:  runTrades,
}

var tradesLimit int

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().IntVarP(&tradesLimit, "limit", "n", 20, "How many executions to print")
}

func runTrades(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.StorageMode != "postgres" {
		return fmt.Errorf("trade history requires STORAGE_MODE=postgres")
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
		cfg.PostgresPass, cfg.PostgresDB, cfg.PostgresSSL,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT timestamp, market, status, total_cost, expected_profit
		FROM executions ORDER BY timestamp DESC LIMIT $1
	`, tradesLimit)
	if err != nil {
		return fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	fmt.Printf("%-25s %-40s %-8s %10s %10s\n", "TIME", "MARKET", "STATUS", "COST", "EXPECTED")
	count := 0
	for rows.Next() {
		var ts, market, status, cost, profit string
		err = rows.Scan(&ts, &market, &status, &cost, &profit)
		if err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		fmt.Printf("%-25s %-40s %-8s %10s %10s\n", ts, truncate(market, 40), status, cost, profit)
		count++
	}

	if count == 0 {
		fmt.Println("No executions recorded")
	}

	return rows.Err()
}
