package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// PostgresStorage implements Storage on PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage connects and verifies the database.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// newPostgresWithDB wires an existing handle; used by tests with sqlmock.
func newPostgresWithDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

// InsertAlert writes the opening record of an opportunity. Duration is
// backfilled later by UpdateAlertDuration.
func (p *PostgresStorage) InsertAlert(ctx context.Context, alert *types.Alert) error {
	query := `
		INSERT INTO alerts (
			market, yes_ask, no_ask, combined, profit, timestamp, platform,
			days_until_resolution, resolution_date, first_seen, duration_secs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)
	`

	var daysUntil sql.NullInt64
	var resolution sql.NullString
	if alert.HasEndDate {
		daysUntil = sql.NullInt64{Int64: int64(alert.DaysUntil), Valid: true}
		resolution = sql.NullString{String: alert.Market.EndDate.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		truncate(alert.Market.Question, 60),
		alert.YesAsk.String(),
		alert.NoAsk.String(),
		alert.Combined.String(),
		alert.Profit.String(),
		alert.DetectedAt.UTC().Format(time.RFC3339),
		"polymarket",
		daysUntil,
		resolution,
		alert.FirstSeen.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	return nil
}

// UpdateAlertDuration backfills duration_secs on the most recent open
// alert for the market.
func (p *PostgresStorage) UpdateAlertDuration(ctx context.Context, market string, durationSecs float64) error {
	query := `
		UPDATE alerts SET duration_secs = $1
		WHERE id = (
			SELECT id FROM alerts
			WHERE market = $2 AND duration_secs IS NULL
			ORDER BY timestamp DESC LIMIT 1
		)
	`

	_, err := p.db.ExecContext(ctx, query, durationSecs, market)
	if err != nil {
		return fmt.Errorf("update alert duration: %w", err)
	}

	return nil
}

// InsertNearMiss records an opportunity that failed a pre-submit guard.
func (p *PostgresStorage) InsertNearMiss(ctx context.Context, nm *types.NearMiss) error {
	query := `
		INSERT INTO near_miss_alerts (
			timestamp, market, yes_ask, no_ask, combined, profit,
			yes_liquidity, no_liquidity, min_required, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.db.ExecContext(ctx, query,
		nm.Timestamp.UTC().Format(time.RFC3339),
		truncate(nm.Alert.Market.Question, 60),
		nm.Alert.YesAsk.String(),
		nm.Alert.NoAsk.String(),
		nm.Alert.Combined.String(),
		nm.Alert.Profit.String(),
		nm.Alert.YesSize.String(),
		nm.Alert.NoSize.String(),
		nm.MinRequired.String(),
		nm.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert near miss: %w", err)
	}

	return nil
}

// InsertExecution records an execution attempt and its per-leg outcomes.
func (p *PostgresStorage) InsertExecution(ctx context.Context, result *types.ExecutionResult) error {
	query := `
		INSERT INTO executions (
			timestamp, market, status,
			yes_order_id, yes_status, yes_price, yes_size, yes_filled_size,
			no_order_id, no_status, no_price, no_size, no_filled_size,
			total_cost, expected_profit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := p.db.ExecContext(ctx, query,
		result.Timestamp.UTC().Format(time.RFC3339),
		truncate(result.Market.Question, 60),
		string(result.Status),
		result.Yes.OrderID,
		result.Yes.Status,
		result.Yes.Price.String(),
		result.Yes.Size.String(),
		result.Yes.FilledSize.String(),
		result.No.OrderID,
		result.No.Status,
		result.No.Price.String(),
		result.No.Size.String(),
		result.No.FilledSize.String(),
		result.TotalCost.String(),
		result.ExpectedProfit.String(),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	return nil
}

// InsertPortfolioSnapshot appends one point of the balance time series.
func (p *PostgresStorage) InsertPortfolioSnapshot(ctx context.Context, ts time.Time, usdc, totalUSD, positionsValue decimal.Decimal) error {
	query := `
		INSERT INTO portfolio_snapshots (timestamp, polymarket_usdc, total_usd, positions_value)
		VALUES ($1, $2, $3, $4)
	`

	_, err := p.db.ExecContext(ctx, query,
		ts.UTC().Format(time.RFC3339),
		usdc.String(),
		totalUSD.String(),
		positionsValue.String(),
	)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}

	return nil
}

// UpsertScannerStats replaces the singleton live-stats row.
func (p *PostgresStorage) UpsertScannerStats(ctx context.Context, stats ScannerStats) error {
	query := `
		INSERT INTO scanner_stats (
			id, markets, price_updates, arbitrage_alerts,
			ws_connected, ws_connections, subscribed_tokens, last_update
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			markets = EXCLUDED.markets,
			price_updates = EXCLUDED.price_updates,
			arbitrage_alerts = EXCLUDED.arbitrage_alerts,
			ws_connected = EXCLUDED.ws_connected,
			ws_connections = EXCLUDED.ws_connections,
			subscribed_tokens = EXCLUDED.subscribed_tokens,
			last_update = EXCLUDED.last_update
	`

	_, err := p.db.ExecContext(ctx, query,
		stats.Markets,
		stats.PriceUpdates,
		stats.ArbitrageAlerts,
		stats.WSConnected,
		stats.WSConnections,
		stats.SubscribedTokens,
		stats.LastUpdate.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert scanner stats: %w", err)
	}

	return nil
}

// InsertStatsHistory appends an hourly snapshot.
func (p *PostgresStorage) InsertStatsHistory(ctx context.Context, row StatsHistoryRow) error {
	query := `
		INSERT INTO stats_history (
			timestamp, hour, markets, price_updates, arbitrage_alerts,
			executions_attempted, executions_filled, ws_connected
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.db.ExecContext(ctx, query,
		row.Timestamp.UTC().Format(time.RFC3339),
		row.Hour,
		row.Markets,
		row.PriceUpdatesDelta,
		row.ArbitrageAlerts,
		row.ExecutionsAttempted,
		row.ExecutionsFilled,
		row.WSConnected,
	)
	if err != nil {
		return fmt.Errorf("insert stats history: %w", err)
	}

	return nil
}

// InsertMinuteStats appends a minute-grained delta.
func (p *PostgresStorage) InsertMinuteStats(ctx context.Context, row MinuteStatsRow) error {
	query := `
		INSERT INTO minute_stats (timestamp, minute, price_updates, ws_connected)
		VALUES ($1, $2, $3, $4)
	`

	_, err := p.db.ExecContext(ctx, query,
		row.Timestamp.UTC().Format(time.RFC3339),
		row.Minute,
		row.PriceUpdatesDelta,
		row.WSConnected,
	)
	if err != nil {
		return fmt.Errorf("insert minute stats: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
