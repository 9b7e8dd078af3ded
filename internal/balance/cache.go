package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChainSource provides on-chain truth for the cache.
type ChainSource interface {
	USDCBalance(ctx context.Context) (decimal.Decimal, error)
	PositionsValue(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotSink records balance snapshots for the historical series;
// implementations must not block.
type SnapshotSink interface {
	SavePortfolioSnapshot(timestamp time.Time, usdc, totalUSD, positionsValue decimal.Decimal)
}

// Cache holds the single in-memory USD figure trades reserve against.
// A reservation deducts atomically with the decision to proceed. After a
// failed execution the cache is refreshed from chain, never credited
// back: a concurrent refresh may already reflect partial fills.
type Cache struct {
	mu      sync.Mutex
	balance decimal.Decimal

	chain  ChainSource
	sink   SnapshotSink
	logger *zap.Logger
}

// New creates a balance cache starting at zero; the first Refresh
// populates it.
func New(chain ChainSource, sink SnapshotSink, logger *zap.Logger) *Cache {
	return &Cache{
		chain:  chain,
		sink:   sink,
		logger: logger,
	}
}

// Balance returns the current cached figure.
func (c *Cache) Balance() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

// Reserve deducts cost when the cache covers it. The caller holds the
// execution lock; the cache's own mutex only protects against the
// concurrent refresh loop.
func (c *Cache) Reserve(cost decimal.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.balance.LessThan(cost) {
		return false
	}

	c.balance = c.balance.Sub(cost)
	ReservationsTotal.Inc()
	CachedBalance.Set(c.balance.InexactFloat64())
	return true
}

// Refresh replaces the cached value with on-chain truth and records a
// portfolio snapshot. On chain failure the stale value is retained and
// returned; the next tick retries.
func (c *Cache) Refresh(ctx context.Context) (decimal.Decimal, error) {
	usdc, err := c.chain.USDCBalance(ctx)
	if err != nil {
		RefreshErrorsTotal.Inc()
		c.logger.Error("balance-refresh-failed", zap.Error(err))
		return c.Balance(), fmt.Errorf("fetch chain balance: %w", err)
	}

	c.mu.Lock()
	c.balance = usdc
	c.mu.Unlock()

	RefreshesTotal.Inc()
	CachedBalance.Set(usdc.InexactFloat64())

	positionsValue := decimal.Zero
	if pv, posErr := c.chain.PositionsValue(ctx); posErr == nil {
		positionsValue = pv
	} else {
		c.logger.Debug("positions-value-fetch-failed", zap.Error(posErr))
	}

	if c.sink != nil {
		c.sink.SavePortfolioSnapshot(time.Now().UTC(), usdc, usdc.Add(positionsValue), positionsValue)
	}

	c.logger.Debug("balance-refreshed", zap.String("balance", usdc.StringFixed(2)))

	return usdc, nil
}

// RefreshLoop refreshes immediately, then every interval until the
// context ends. The initial value is logged for the startup record.
func (c *Cache) RefreshLoop(ctx context.Context, interval time.Duration) {
	initial, err := c.Refresh(ctx)
	if err == nil {
		c.logger.Info("balance-tracking-initialized",
			zap.String("balance", initial.StringFixed(2)),
			zap.Duration("interval", interval))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("balance-refresh-stopping")
			return
		case <-ticker.C:
			_, _ = c.Refresh(ctx)
		}
	}
}
