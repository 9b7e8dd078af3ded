package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/storage"
)

// startBackgroundLoops launches the periodic tasks. Redemption and
// balance refresh only run live; stats loops always run.
func (a *App) startBackgroundLoops() {
	if !a.cfg.DryRun {
		a.wg.Add(1)
		go a.redemptionLoop()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.bal.RefreshLoop(a.ctx, balanceInterval)
		}()
	}

	a.wg.Add(1)
	go a.statsLoop()

	a.wg.Add(1)
	go a.statsHistoryLoop()

	a.wg.Add(1)
	go a.minuteStatsLoop()
}

// redemptionLoop sweeps resolved positions every five minutes.
func (a *App) redemptionLoop() {
	defer a.wg.Done()

	// Let the scanner stabilise before the first sweep.
	select {
	case <-a.ctx.Done():
		return
	case <-time.After(time.Minute):
	}

	a.logger.Info("auto-redemption-started", zap.Duration("interval", redemptionInterval))

	ticker := time.NewTicker(redemptionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			result, err := a.redeemer.CheckAndRedeem(a.ctx)
			if err != nil {
				a.logger.Error("auto-redemption-error", zap.Error(err))
				continue
			}

			switch {
			case result.Skipped:
				a.logger.Debug("redemption-skipped", zap.String("reason", result.SkipReason))
			case result.Redeemed > 0:
				a.logger.Info("auto-redemption-completed",
					zap.Int("redeemed", result.Redeemed),
					zap.String("total-value", result.TotalValue.StringFixed(2)))
			}
		}
	}
}

// statsLoop logs live scanner stats every minute and upserts the
// dashboard singleton row.
func (a *App) statsLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(statsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			stats := a.scannerStats()

			bestSpread, _ := a.det.BestNearMiss()
			a.logger.Info("scanner-stats",
				zap.Int("markets", stats.Markets),
				zap.Uint64("price-updates", stats.PriceUpdates),
				zap.Uint64("arbitrage-alerts", stats.ArbitrageAlerts),
				zap.String("ws-connections", stats.WSConnections),
				zap.Strings("conn-ages", a.pool.ConnectionAges()),
				zap.String("best-spread", bestSpread.String()))

			a.writer.SaveScannerStats(stats)
		}
	}
}

// statsHistoryLoop records the hourly snapshot with the price-update
// delta since the previous record.
func (a *App) statsHistoryLoop() {
	defer a.wg.Done()

	select {
	case <-a.ctx.Done():
		return
	case <-time.After(time.Minute):
	}

	a.logger.Info("stats-history-started", zap.Duration("interval", statsHistoryInterval))

	ticker := time.NewTicker(statsHistoryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			current := a.det.PriceUpdates()
			delta := current - a.lastHourlyUpdates
			a.lastHourlyUpdates = current

			attempted, filled, _ := a.exec.Stats()
			now := time.Now().UTC()

			a.writer.SaveStatsHistory(storage.StatsHistoryRow{
				Timestamp:           now,
				Hour:                now.Format("2006-01-02 15:00"),
				Markets:             a.marketSvc.Count(),
				PriceUpdatesDelta:   delta,
				ArbitrageAlerts:     a.det.AlertCount(),
				ExecutionsAttempted: attempted,
				ExecutionsFilled:    filled,
				WSConnected:         a.pool.ConnectedCount() == a.pool.Size(),
			})
		}
	}
}

// minuteStatsLoop records minute-grained price-update deltas for the
// real-time chart. The baseline is initialised on the first tick so a
// restart does not produce one huge spike.
func (a *App) minuteStatsLoop() {
	defer a.wg.Done()

	select {
	case <-a.ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	a.lastMinuteUpdates = a.det.PriceUpdates()

	ticker := time.NewTicker(minuteStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			current := a.det.PriceUpdates()
			delta := current - a.lastMinuteUpdates
			a.lastMinuteUpdates = current

			now := time.Now().UTC()
			a.writer.SaveMinuteStats(storage.MinuteStatsRow{
				Timestamp:         now,
				Minute:            now.Format("2006-01-02 15:04"),
				PriceUpdatesDelta: delta,
				WSConnected:       a.pool.ConnectedCount() == a.pool.Size(),
			})
		}
	}
}

func (a *App) scannerStats() storage.ScannerStats {
	connected := a.pool.ConnectedCount()
	total := a.pool.Size()

	return storage.ScannerStats{
		Markets:          a.marketSvc.Count(),
		PriceUpdates:     a.det.PriceUpdates(),
		ArbitrageAlerts:  a.det.AlertCount(),
		WSConnected:      connected == total,
		WSConnections:    fmt.Sprintf("%d/%d", connected, total),
		SubscribedTokens: a.pool.SubscribedCount(),
		LastUpdate:       time.Now().UTC(),
	}
}
