package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/detector"
	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/types"
)

// BookFetcher is the HTTP order-book collaborator used by the legacy
// polling mode. Real-time mode never touches it.
type BookFetcher interface {
	FetchBook(ctx context.Context, tokenID string) (*types.BookUpdate, error)
}

// Poller is the slow path: it sweeps every market on a fixed interval,
// feeds fetched books through the same store, and drives the same
// detector as the streaming scanner.
type Poller struct {
	marketSvc *markets.Service
	store     *orderbook.Store
	det       *detector.Detector
	fetcher   BookFetcher
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a polling sweeper.
func New(marketSvc *markets.Service, store *orderbook.Store, det *detector.Detector, fetcher BookFetcher, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		marketSvc: marketSvc,
		store:     store,
		det:       det,
		fetcher:   fetcher,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps until the context ends.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling-scanner-starting", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("polling-scanner-stopping")
			return ctx.Err()
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep over all tracked markets.
func (p *Poller) RunOnce(ctx context.Context) {
	start := time.Now()
	swept := 0

	for _, market := range p.marketSvc.All() {
		if ctx.Err() != nil {
			return
		}

		ok := true
		for _, tokenID := range market.TokenIDs() {
			update, err := p.fetcher.FetchBook(ctx, tokenID)
			if err != nil {
				p.logger.Debug("book-fetch-failed",
					zap.String("token-id", tokenID),
					zap.Error(err))
				ok = false
				break
			}
			p.store.Apply(update)
		}

		if ok {
			p.det.Evaluate(market)
			swept++
		}
	}

	p.logger.Debug("sweep-complete",
		zap.Int("markets", swept),
		zap.Duration("took", time.Since(start)))
}
