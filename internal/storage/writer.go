package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// AsyncWriter decouples the hot path from storage I/O: callers enqueue
// and return immediately, a fixed worker pool drains the queue. A full
// queue drops the record rather than block detection or execution.
type AsyncWriter struct {
	store  Storage
	logger *zap.Logger
	jobs   chan func(ctx context.Context)
	done   chan struct{}
}

// NewAsyncWriter creates a writer with the given worker count and queue
// depth.
func NewAsyncWriter(store Storage, workers, buffer int, logger *zap.Logger) *AsyncWriter {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 1024
	}

	return &AsyncWriter{
		store:  store,
		logger: logger,
		jobs:   make(chan func(ctx context.Context), buffer),
		done:   make(chan struct{}),
	}
}

// Start launches the worker pool. After the context ends each worker
// drains what is already queued so records written at shutdown still
// land; the jobs channel itself is never closed, so late enqueues from
// racing producers are safe no-ops.
func (w *AsyncWriter) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}

	run := func(job func(ctx context.Context)) {
		jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		job(jobCtx)
		cancel()
	}

	remaining := make(chan struct{}, workers)
	for range workers {
		go func() {
			defer func() { remaining <- struct{}{} }()
			for {
				select {
				case job := <-w.jobs:
					run(job)
				case <-ctx.Done():
					for {
						select {
						case job := <-w.jobs:
							run(job)
						default:
							return
						}
					}
				}
			}
		}()
	}

	go func() {
		for range workers {
			<-remaining
		}
		close(w.done)
	}()
}

func (w *AsyncWriter) enqueue(kind string, job func(ctx context.Context)) {
	select {
	case w.jobs <- job:
	default:
		WriteDroppedTotal.WithLabelValues(kind).Inc()
		w.logger.Warn("storage-queue-full-dropping", zap.String("kind", kind))
	}
}

func (w *AsyncWriter) logErr(kind string, err error) {
	if err != nil {
		WriteErrorsTotal.WithLabelValues(kind).Inc()
		w.logger.Debug("storage-write-failed", zap.String("kind", kind), zap.Error(err))
	}
}

// SaveAlert persists an alert opening.
func (w *AsyncWriter) SaveAlert(alert *types.Alert) {
	w.enqueue("alert", func(ctx context.Context) {
		w.logErr("alert", w.store.InsertAlert(ctx, alert))
	})
}

// BackfillAlertDuration sets the alert's duration when the opportunity
// closes.
func (w *AsyncWriter) BackfillAlertDuration(market string, durationSecs float64) {
	w.enqueue("alert_duration", func(ctx context.Context) {
		w.logErr("alert_duration", w.store.UpdateAlertDuration(ctx, market, durationSecs))
	})
}

// SaveNearMiss persists a near-miss record.
func (w *AsyncWriter) SaveNearMiss(nm *types.NearMiss) {
	w.enqueue("near_miss", func(ctx context.Context) {
		w.logErr("near_miss", w.store.InsertNearMiss(ctx, nm))
	})
}

// SaveExecution persists an execution attempt.
func (w *AsyncWriter) SaveExecution(result *types.ExecutionResult) {
	w.enqueue("execution", func(ctx context.Context) {
		w.logErr("execution", w.store.InsertExecution(ctx, result))
	})
}

// SavePortfolioSnapshot appends a balance series point.
func (w *AsyncWriter) SavePortfolioSnapshot(ts time.Time, usdc, totalUSD, positionsValue decimal.Decimal) {
	w.enqueue("portfolio_snapshot", func(ctx context.Context) {
		w.logErr("portfolio_snapshot", w.store.InsertPortfolioSnapshot(ctx, ts, usdc, totalUSD, positionsValue))
	})
}

// SaveScannerStats replaces the live-stats singleton.
func (w *AsyncWriter) SaveScannerStats(stats ScannerStats) {
	w.enqueue("scanner_stats", func(ctx context.Context) {
		w.logErr("scanner_stats", w.store.UpsertScannerStats(ctx, stats))
	})
}

// SaveStatsHistory appends an hourly snapshot.
func (w *AsyncWriter) SaveStatsHistory(row StatsHistoryRow) {
	w.enqueue("stats_history", func(ctx context.Context) {
		w.logErr("stats_history", w.store.InsertStatsHistory(ctx, row))
	})
}

// SaveMinuteStats appends a minute-grained delta.
func (w *AsyncWriter) SaveMinuteStats(row MinuteStatsRow) {
	w.enqueue("minute_stats", func(ctx context.Context) {
		w.logErr("minute_stats", w.store.InsertMinuteStats(ctx, row))
	})
}

// Wait blocks until the queue has drained after context cancellation.
func (w *AsyncWriter) Wait() {
	<-w.done
}
