package detector

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/types"
)

type stubIndex struct {
	market *types.Market
}

func (s *stubIndex) MarketByToken(tokenID string) (*types.Market, bool) {
	if tokenID == s.market.YesToken.TokenID || tokenID == s.market.NoToken.TokenID {
		return s.market, true
	}
	return nil, false
}

type stubLadders struct {
	sizes map[string]string
}

func (s *stubLadders) AskSizeAt(tokenID string) *decimal.Decimal {
	if raw, ok := s.sizes[tokenID]; ok {
		d := decimal.RequireFromString(raw)
		return &d
	}
	return nil
}

type recordingSink struct {
	mu        sync.Mutex
	alerts    []*types.Alert
	backfills []float64
}

func (r *recordingSink) SaveAlert(alert *types.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingSink) BackfillAlertDuration(market string, durationSecs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backfills = append(r.backfills, durationSecs)
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type fixture struct {
	store  *orderbook.Store
	det    *Detector
	sink   *recordingSink
	alerts []*types.Alert
	market *types.Market
}

func newFixture(t *testing.T, threshold string, market *types.Market) *fixture {
	t.Helper()

	in := make(chan *types.BookUpdate)
	store := orderbook.New(&orderbook.Config{
		Logger:        zap.NewNop(),
		UpdateChannel: in,
		FanoutBuffer:  64,
	})

	f := &fixture{
		store:  store,
		sink:   &recordingSink{},
		market: market,
	}

	f.det = New(Config{
		Threshold:       decimal.RequireFromString(threshold),
		MaxDaysUntilRes: 7,
		Logger:          zap.NewNop(),
	}, store, &stubIndex{market: market}, &stubLadders{}, f.sink, func(alert *types.Alert) {
		f.alerts = append(f.alerts, alert)
	})

	return f
}

func binaryMarket() *types.Market {
	return &types.Market{
		ID:       "m1",
		Slug:     "test-market",
		Question: "Will the test pass?",
		YesToken: types.Token{TokenID: "yes-tok", Side: types.SideYes},
		NoToken:  types.Token{TokenID: "no-tok", Side: types.SideNo},
	}
}

func (f *fixture) applyAsk(tokenID, ask, size string) {
	f.store.Apply(&types.BookUpdate{
		TokenID:   tokenID,
		BestAsk:   dec(ask),
		AskSize:   dec(size),
		Snapshot:  true,
		Timestamp: time.Now(),
	})
	f.det.OnUpdate(tokenID)
}

func TestNoAlertWithOneSideMissing(t *testing.T) {
	f := newFixture(t, "0.005", binaryMarket())

	f.applyAsk("yes-tok", "0.45", "100")

	if len(f.alerts) != 0 {
		t.Errorf("expected no alerts with NO side missing, got %d", len(f.alerts))
	}
}

func TestAlertEmittedOncePerOpening(t *testing.T) {
	f := newFixture(t, "0.06", binaryMarket())

	// combined 0.95, profit 0.05: below threshold, no alert
	f.applyAsk("yes-tok", "0.45", "100")
	f.applyAsk("no-tok", "0.50", "100")
	if len(f.alerts) != 0 {
		t.Fatalf("expected no alerts at profit 0.05, got %d", len(f.alerts))
	}

	// no_ask drops to 0.48: combined 0.93, profit 0.07 > 0.06
	f.applyAsk("no-tok", "0.48", "100")
	if len(f.alerts) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(f.alerts))
	}
	if !f.alerts[0].IsNewOpen {
		t.Error("expected first alert to open the opportunity")
	}
	if f.alerts[0].Combined.String() != "0.93" || f.alerts[0].Profit.String() != "0.07" {
		t.Errorf("unexpected alert values: %+v", f.alerts[0])
	}
	if len(f.sink.alerts) != 1 {
		t.Fatalf("expected exactly one persisted alert, got %d", len(f.sink.alerts))
	}

	// Another profitable update: callback fires again, nothing new persisted.
	f.applyAsk("no-tok", "0.47", "90")
	if len(f.alerts) != 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(f.alerts))
	}
	if f.alerts[1].IsNewOpen {
		t.Error("second alert must not re-open the opportunity")
	}
	if len(f.sink.alerts) != 1 {
		t.Errorf("expected still one persisted alert, got %d", len(f.sink.alerts))
	}

	// Opportunity closes: exactly one duration backfill.
	f.applyAsk("yes-tok", "0.55", "100")
	if len(f.sink.backfills) != 1 {
		t.Fatalf("expected one duration backfill, got %d", len(f.sink.backfills))
	}
	if f.sink.backfills[0] < 0 {
		t.Errorf("expected non-negative duration, got %f", f.sink.backfills[0])
	}

	// Staying closed must not backfill again.
	f.applyAsk("yes-tok", "0.56", "100")
	if len(f.sink.backfills) != 1 {
		t.Errorf("expected no second backfill, got %d", len(f.sink.backfills))
	}

	if f.det.OpenCount() != 0 {
		t.Errorf("expected no open opportunities, got %d", f.det.OpenCount())
	}
}

func TestNoExecutableAlertAboveThresholdBoundary(t *testing.T) {
	// For any market: if combined > 1 - threshold, no executable alert.
	f := newFixture(t, "0.05", binaryMarket())

	f.applyAsk("yes-tok", "0.47", "100")
	f.applyAsk("no-tok", "0.48", "100") // combined 0.95, profit exactly 0.05

	if len(f.alerts) != 0 {
		t.Errorf("profit equal to threshold must not alert, got %d alerts", len(f.alerts))
	}

	best, _ := f.det.BestNearMiss()
	if best.String() != "0.05" {
		t.Errorf("expected best near-miss 0.05, got %s", best)
	}
}

func TestNearMissOutsideMarginNotTracked(t *testing.T) {
	f := newFixture(t, "0.05", binaryMarket())

	// profit 0.02 is positive but more than 0.5% below the threshold
	f.applyAsk("yes-tok", "0.48", "100")
	f.applyAsk("no-tok", "0.50", "100")

	best, _ := f.det.BestNearMiss()
	if !best.IsZero() {
		t.Errorf("expected no near-miss tracking, got %s", best)
	}
}

func TestResolutionHorizon(t *testing.T) {
	tests := []struct {
		name      string
		endDate   time.Time
		wantAlert bool
	}{
		{
			name:      "resolves-soon",
			endDate:   time.Now().UTC().Add(48 * time.Hour),
			wantAlert: true,
		},
		{
			name:      "resolves-too-far",
			endDate:   time.Now().UTC().Add(30 * 24 * time.Hour),
			wantAlert: false,
		},
		{
			name:      "unknown-resolution-allowed",
			wantAlert: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := binaryMarket()
			market.EndDate = tt.endDate
			f := newFixture(t, "0.005", market)

			f.applyAsk("yes-tok", "0.45", "100")
			f.applyAsk("no-tok", "0.48", "100")

			gotAlert := len(f.alerts) > 0
			if gotAlert != tt.wantAlert {
				t.Errorf("expected alert=%v, got %v", tt.wantAlert, gotAlert)
			}
		})
	}
}

func TestMissingSizeFallsBackToLadder(t *testing.T) {
	market := binaryMarket()
	f := newFixture(t, "0.005", market)

	// Ladder knows the NO size even though the update carried none.
	f.det.ladders = &stubLadders{sizes: map[string]string{"no-tok": "42"}}

	f.store.Apply(&types.BookUpdate{TokenID: "yes-tok", BestAsk: dec("0.45"), AskSize: dec("100"), Snapshot: true})
	f.store.Apply(&types.BookUpdate{TokenID: "no-tok", BestAsk: dec("0.48"), Snapshot: true})
	f.det.OnUpdate("no-tok")

	if len(f.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.alerts))
	}
	if f.alerts[0].NoSize.String() != "42" {
		t.Errorf("expected ladder fallback size 42, got %s", f.alerts[0].NoSize)
	}
}

func TestMissingSizeWithoutLadderTreatedAsZero(t *testing.T) {
	f := newFixture(t, "0.005", binaryMarket())

	f.store.Apply(&types.BookUpdate{TokenID: "yes-tok", BestAsk: dec("0.45"), AskSize: dec("100"), Snapshot: true})
	f.store.Apply(&types.BookUpdate{TokenID: "no-tok", BestAsk: dec("0.48"), Snapshot: true})
	f.det.OnUpdate("no-tok")

	if len(f.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.alerts))
	}
	if !f.alerts[0].NoSize.IsZero() {
		t.Errorf("expected zero size, got %s", f.alerts[0].NoSize)
	}
}

func TestPriceUpdateCounter(t *testing.T) {
	f := newFixture(t, "0.005", binaryMarket())

	f.applyAsk("yes-tok", "0.45", "100")
	f.applyAsk("no-tok", "0.60", "100")
	f.det.OnUpdate("unknown-token")

	if got := f.det.PriceUpdates(); got != 3 {
		t.Errorf("expected 3 price updates, got %d", got)
	}
}
