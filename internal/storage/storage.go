package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyarb/polyarb/pkg/types"
)

// ScannerStats is the singleton (id=1) live snapshot of the scanner.
type ScannerStats struct {
	Markets          int
	PriceUpdates     uint64
	ArbitrageAlerts  uint64
	WSConnected      bool
	WSConnections    string // "connected/total"
	SubscribedTokens int
	LastUpdate       time.Time
}

// StatsHistoryRow is an hourly snapshot for charting.
type StatsHistoryRow struct {
	Timestamp           time.Time
	Hour                string // "2006-01-02 15:00"
	Markets             int
	PriceUpdatesDelta   uint64
	ArbitrageAlerts     uint64
	ExecutionsAttempted int
	ExecutionsFilled    int
	WSConnected         bool
}

// MinuteStatsRow is a minute-grained price-update delta for real-time
// charting.
type MinuteStatsRow struct {
	Timestamp         time.Time
	Minute            string // "2006-01-02 15:04"
	PriceUpdatesDelta uint64
	WSConnected       bool
}

// Storage persists the scanner's records.
type Storage interface {
	InsertAlert(ctx context.Context, alert *types.Alert) error
	UpdateAlertDuration(ctx context.Context, market string, durationSecs float64) error
	InsertNearMiss(ctx context.Context, nm *types.NearMiss) error
	InsertExecution(ctx context.Context, result *types.ExecutionResult) error
	InsertPortfolioSnapshot(ctx context.Context, ts time.Time, usdc, totalUSD, positionsValue decimal.Decimal) error
	UpsertScannerStats(ctx context.Context, stats ScannerStats) error
	InsertStatsHistory(ctx context.Context, row StatsHistoryRow) error
	InsertMinuteStats(ctx context.Context, row MinuteStatsRow) error
	Close() error
}
