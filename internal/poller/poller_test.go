package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/detector"
	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/types"
)

type fakeSource struct {
	markets []types.Market
}

func (f *fakeSource) FetchActiveMarkets(ctx context.Context, limit int) ([]types.Market, error) {
	return f.markets, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	books map[string]*types.BookUpdate
}

func (f *fakeFetcher) FetchBook(ctx context.Context, tokenID string) (*types.BookUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	book := f.books[tokenID]
	cp := *book
	cp.Timestamp = time.Now()
	return &cp, nil
}

func (f *fakeFetcher) setAsk(tokenID, price, size string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := decimal.RequireFromString(price)
	s := decimal.RequireFromString(size)
	f.books[tokenID] = &types.BookUpdate{
		TokenID:  tokenID,
		BestAsk:  &p,
		AskSize:  &s,
		Snapshot: true,
	}
}

type recSink struct {
	mu        sync.Mutex
	alerts    int
	backfills int
}

func (r *recSink) SaveAlert(*types.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts++
}

func (r *recSink) BackfillAlertDuration(string, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backfills++
}

// TestSweepDetectsAndClosesOpportunity drives the whole slow path:
// fetch -> store -> detector, opening then closing one opportunity.
func TestSweepDetectsAndClosesOpportunity(t *testing.T) {
	source := &fakeSource{markets: []types.Market{{
		ID:        "m1",
		Slug:      "sweep-market",
		Question:  "Does the sweep work?",
		Liquidity: decimal.RequireFromString("50000"),
		YesToken:  types.Token{TokenID: "yes-tok", Side: types.SideYes},
		NoToken:   types.Token{TokenID: "no-tok", Side: types.SideNo},
	}}}

	svc := markets.New(&markets.Config{
		Client:          source,
		Logger:          zap.NewNop(),
		MinLiquidityUSD: decimal.Zero,
		MaxMarkets:      10,
	})

	_, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load markets: %v", err)
	}

	in := make(chan *types.BookUpdate)
	store := orderbook.New(&orderbook.Config{
		Logger:        zap.NewNop(),
		UpdateChannel: in,
		FanoutBuffer:  64,
	})

	sink := &recSink{}
	var alerts []*types.Alert
	det := detector.New(detector.Config{
		Threshold:       decimal.RequireFromString("0.05"),
		MaxDaysUntilRes: 7,
		Logger:          zap.NewNop(),
	}, store, svc, nil, sink, func(alert *types.Alert) {
		alerts = append(alerts, alert)
	})

	fetcher := &fakeFetcher{books: map[string]*types.BookUpdate{}}
	fetcher.setAsk("yes-tok", "0.45", "100")
	fetcher.setAsk("no-tok", "0.50", "100")

	p := New(svc, store, det, fetcher, time.Second, zap.NewNop())

	// combined 0.95, profit 0.05: at the threshold, nothing fires
	p.RunOnce(context.Background())
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerts))
	}

	// NO drops to 0.48: profit 0.07 opens the opportunity
	fetcher.setAsk("no-tok", "0.48", "100")
	p.RunOnce(context.Background())
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if alerts[0].Profit.String() != "0.07" {
		t.Errorf("expected profit 0.07, got %s", alerts[0].Profit)
	}
	if sink.alerts != 1 {
		t.Errorf("expected one persisted alert, got %d", sink.alerts)
	}

	// YES rises to 0.55: the opportunity closes, duration backfilled once
	fetcher.setAsk("yes-tok", "0.55", "100")
	p.RunOnce(context.Background())
	if sink.backfills != 1 {
		t.Errorf("expected one duration backfill, got %d", sink.backfills)
	}
	if det.OpenCount() != 0 {
		t.Errorf("expected no open opportunities, got %d", det.OpenCount())
	}
}
