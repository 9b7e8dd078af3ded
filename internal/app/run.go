package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/poller"
	"github.com/polyarb/polyarb/pkg/types"
)

// Run boots every component and blocks until shutdown.
func (a *App) Run() error {
	mode := "LIVE"
	if a.cfg.DryRun {
		mode = "DRY RUN"
	}

	a.logger.Info("scanner-starting",
		zap.String("mode", mode),
		zap.String("min-profit-threshold", a.cfg.MinProfitThreshold.String()),
		zap.String("max-position", a.cfg.MaxPositionSizeUSD.String()),
		zap.Int("ws-connections", a.cfg.NumWSConnections))

	a.writer.Start(a.ctx, 4)

	a.wg.Add(1)
	go a.runHTTPServer()

	// Load the market universe and pre-resolve neg-risk routing before
	// subscribing, so the submission hot path never pays the lookup.
	selected, err := a.marketSvc.Load(a.ctx)
	if err != nil {
		return fmt.Errorf("initial market load: %w", err)
	}
	a.onMarketsLoaded(selected)

	if a.polling {
		// Legacy polling mode: the sweeper applies fetched books to the
		// store and drives the detector directly.
		sweeper := poller.New(a.marketSvc, a.bookStore, a.det,
			poller.NewCLOBFetcher(a.cfg.CLOBURL), a.cfg.PollInterval, a.logger)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			_ = sweeper.Run(a.ctx)
		}()
	} else {
		err = a.pool.Start(a.ctx, a.marketSvc.TokenOrder())
		if err != nil {
			return fmt.Errorf("start websocket pool: %w", err)
		}

		a.bookStore.Start(a.ctx)
		a.det.Start(a.ctx)
	}

	a.wg.Add(1)
	go a.executionLoop()

	a.marketSvc.OnReload(a.onMarketsReloaded)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.marketSvc.RefreshLoop(a.ctx)
	}()

	a.startBackgroundLoops()

	a.notifier.NotifyStartup(mode)
	a.health.SetReady(true)

	a.logger.Info("scanner-ready",
		zap.Int("markets", a.marketSvc.Count()),
		zap.Int("subscribed-assets", a.pool.SubscribedCount()),
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// onMarketsLoaded seeds neg-risk flags from market metadata and fires the
// prefetch task in the background.
func (a *App) onMarketsLoaded(selected []*types.Market) {
	tokenIDs := make([]string, 0, len(selected)*2)
	for _, m := range selected {
		a.negRisk.Seed(m.YesToken.TokenID, m.NegRisk)
		a.negRisk.Seed(m.NoToken.TokenID, m.NegRisk)
		tokenIDs = append(tokenIDs, m.YesToken.TokenID, m.NoToken.TokenID)
	}

	go a.negRisk.Prefetch(a.ctx, tokenIDs)
}

// onMarketsReloaded reacts to a market-set change beyond the tolerance:
// drop all book state and re-establish every connection with the new
// asset list.
func (a *App) onMarketsReloaded(tokens []string, selected []*types.Market) {
	a.onMarketsLoaded(selected)
	a.bookStore.Reset()
	a.pool.Reshard(tokens)
}

// onAlert is the detector callback. It hands the alert to the execution
// goroutine without blocking the price-update path.
func (a *App) onAlert(alert *types.Alert) {
	select {
	case a.alertChan <- alert:
	default:
		a.logger.Warn("alert-channel-full-dropping",
			zap.String("market", alert.Market.Slug))
	}
}

// executionLoop serialises executions: the lock is held across the
// entire feasibility check, balance reservation and dual submission.
func (a *App) executionLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case alert := <-a.alertChan:
			a.executionLock.Lock()
			// Shutdown's cancel does not reach a submission already started.
			a.exec.Execute(context.WithoutCancel(a.ctx), alert)
			a.executionLock.Unlock()
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

// statusSnapshot serves the /status endpoint.
func (a *App) statusSnapshot() map[string]interface{} {
	attempted, filled, profit := a.exec.Stats()
	bestSpread, bestMarket := a.det.BestNearMiss()

	return map[string]interface{}{
		"markets":           a.marketSvc.Count(),
		"price_updates":     a.det.PriceUpdates(),
		"arbitrage_alerts":  a.det.AlertCount(),
		"open_opps":         a.det.OpenCount(),
		"ws_connected":      a.pool.ConnectedCount() == a.pool.Size(),
		"ws_connections":    fmt.Sprintf("%d/%d", a.pool.ConnectedCount(), a.pool.Size()),
		"subscribed_tokens": a.pool.SubscribedCount(),
		"conn_ages":         a.pool.ConnectionAges(),
		"trades_attempted":  attempted,
		"trades_filled":     filled,
		"expected_profit":   profit.StringFixed(2),
		"best_near_miss":    bestSpread.String(),
		"best_near_miss_market": bestMarket,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
}
