package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// ConsoleStorage implements Storage by logging records. Used when no
// database is configured.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{logger: logger}
}

func (c *ConsoleStorage) InsertAlert(ctx context.Context, alert *types.Alert) error {
	c.logger.Info("alert-record",
		zap.String("market", alert.Market.Slug),
		zap.String("yes-ask", alert.YesAsk.String()),
		zap.String("no-ask", alert.NoAsk.String()),
		zap.String("combined", alert.Combined.String()),
		zap.String("profit", alert.Profit.String()))
	return nil
}

func (c *ConsoleStorage) UpdateAlertDuration(ctx context.Context, market string, durationSecs float64) error {
	c.logger.Info("alert-duration-record",
		zap.String("market", market),
		zap.Float64("duration-secs", durationSecs))
	return nil
}

func (c *ConsoleStorage) InsertNearMiss(ctx context.Context, nm *types.NearMiss) error {
	c.logger.Info("near-miss-record",
		zap.String("market", nm.Alert.Market.Slug),
		zap.String("reason", nm.Reason),
		zap.String("min-required", nm.MinRequired.String()))
	return nil
}

func (c *ConsoleStorage) InsertExecution(ctx context.Context, result *types.ExecutionResult) error {
	c.logger.Info("execution-record",
		zap.String("market", result.Market.Slug),
		zap.String("status", string(result.Status)),
		zap.String("expected-profit", result.ExpectedProfit.String()))
	return nil
}

func (c *ConsoleStorage) InsertPortfolioSnapshot(ctx context.Context, ts time.Time, usdc, totalUSD, positionsValue decimal.Decimal) error {
	c.logger.Info("portfolio-snapshot-record",
		zap.String("usdc", usdc.StringFixed(2)),
		zap.String("total", totalUSD.StringFixed(2)))
	return nil
}

func (c *ConsoleStorage) UpsertScannerStats(ctx context.Context, stats ScannerStats) error {
	c.logger.Debug("scanner-stats-record",
		zap.Int("markets", stats.Markets),
		zap.Uint64("price-updates", stats.PriceUpdates),
		zap.String("ws-connections", stats.WSConnections))
	return nil
}

func (c *ConsoleStorage) InsertStatsHistory(ctx context.Context, row StatsHistoryRow) error {
	c.logger.Debug("stats-history-record", zap.String("hour", row.Hour))
	return nil
}

func (c *ConsoleStorage) InsertMinuteStats(ctx context.Context, row MinuteStatsRow) error {
	c.logger.Debug("minute-stats-record", zap.String("minute", row.Minute))
	return nil
}

func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
