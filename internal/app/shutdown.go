package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops intake, cancels the background loops, closes every
// stream connection, emits the shutdown notification and flushes the
// final statistics. In-flight submissions finish and reconcile normally
// because the execution loop only checks the context between alerts and
// runs each execution on a context that the cancel here does not reach.
func (a *App) Shutdown() error {
	a.logger.Info("scanner-shutting-down")

	a.health.SetReady(false)
	a.notifier.NotifyShutdown("normal")

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.pool.Close()
	a.bookStore.Close()
	a.det.Close()

	a.wg.Wait()

	// Drain the writer, then flush the final stats synchronously so they
	// land even though the worker pool has exited.
	a.writer.Wait()
	err = a.store.UpsertScannerStats(shutdownCtx, a.scannerStats())
	if err != nil {
		a.logger.Warn("final-stats-flush-failed", zap.Error(err))
	}

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.notifier.Close(shutdownCtx)

	attempted, filled, profit := a.exec.Stats()
	a.logger.Info("scanner-shutdown-complete",
		zap.Uint64("price-updates", a.det.PriceUpdates()),
		zap.Uint64("arbitrage-alerts", a.det.AlertCount()),
		zap.Int("trades-attempted", attempted),
		zap.Int("trades-filled", filled),
		zap.String("expected-profit", profit.StringFixed(2)))

	return nil
}
