package cmd

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/polyarb/polyarb/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running scanner",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var status map[string]interface{}
	resp, err := resty.New().
		SetTimeout(5*time.Second).
		R().
		SetResult(&status).
		Get(fmt.Sprintf("http://localhost:%s/status", cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("scanner not reachable on :%s - is it running? (%w)", cfg.HTTPPort, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode())
	}

	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%-24s %v\n", k+":", status[k])
	}

	return nil
}
