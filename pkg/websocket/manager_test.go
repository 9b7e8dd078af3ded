package websocket

import (
	"testing"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, chan *types.BookUpdate) {
	t.Helper()
	out := make(chan *types.BookUpdate, 16)
	m := New(Config{ID: 0, Logger: zap.NewNop()}, out)
	return m, out
}

func recvUpdate(t *testing.T, out chan *types.BookUpdate) *types.BookUpdate {
	t.Helper()
	select {
	case u := <-out:
		return u
	default:
		t.Fatal("expected an update")
		return nil
	}
}

func TestApplyBookDerivesTopOfBook(t *testing.T) {
	m, out := newTestManager(t)

	m.applyBook(&types.StreamMessage{
		EventType: "book",
		AssetID:   "tok-1",
		Bids: []types.PriceLevel{
			{Price: "0.46", Size: "40"},
			{Price: "0.48", Size: "50"},
		},
		Asks: []types.PriceLevel{
			{Price: "0.52", Size: "30"},
			{Price: "0.50", Size: "100"},
		},
	})

	u := recvUpdate(t, out)
	if !u.Snapshot {
		t.Error("expected snapshot update")
	}
	if u.BestBid == nil || u.BestBid.String() != "0.48" {
		t.Errorf("expected best bid 0.48, got %v", u.BestBid)
	}
	if u.BestAsk == nil || u.BestAsk.String() != "0.5" {
		t.Errorf("expected best ask 0.5, got %v", u.BestAsk)
	}
	if u.AskSize == nil || u.AskSize.String() != "100" {
		t.Errorf("expected ask size 100, got %v", u.AskSize)
	}
}

func TestPriceChangeSellAtBestAskIsAuthoritative(t *testing.T) {
	m, out := newTestManager(t)

	m.applyBook(&types.StreamMessage{
		EventType: "book",
		AssetID:   "tok-1",
		Asks:      []types.PriceLevel{{Price: "0.50", Size: "100"}},
	})
	<-out

	m.applyPriceChange(&types.StreamMessage{
		EventType: "price_change",
		AssetID:   "tok-1",
		Side:      "SELL",
		Price:     "0.50",
		Size:      "80",
		BestBid:   "0.48",
		BestAsk:   "0.50",
	})

	u := recvUpdate(t, out)
	if u.AskSize == nil || u.AskSize.String() != "80" {
		t.Errorf("expected authoritative ask size 80, got %v", u.AskSize)
	}
}

func TestPriceChangeOffBestConsultsLadder(t *testing.T) {
	m, out := newTestManager(t)

	m.applyBook(&types.StreamMessage{
		EventType: "book",
		AssetID:   "tok-1",
		Asks: []types.PriceLevel{
			{Price: "0.50", Size: "100"},
			{Price: "0.52", Size: "30"},
		},
	})
	<-out

	// A BUY-side change must not trust the carried size for the ask;
	// the ladder still holds 100 at the 0.50 best.
	m.applyPriceChange(&types.StreamMessage{
		EventType: "price_change",
		AssetID:   "tok-1",
		Side:      "BUY",
		Price:     "0.47",
		Size:      "20",
		BestBid:   "0.47",
		BestAsk:   "0.50",
	})

	u := recvUpdate(t, out)
	if u.AskSize == nil || u.AskSize.String() != "100" {
		t.Errorf("expected ladder ask size 100, got %v", u.AskSize)
	}
}

func TestPriceChangeRemovingBestLevelRecomputes(t *testing.T) {
	m, out := newTestManager(t)

	m.applyBook(&types.StreamMessage{
		EventType: "book",
		AssetID:   "tok-1",
		Asks: []types.PriceLevel{
			{Price: "0.50", Size: "100"},
			{Price: "0.52", Size: "30"},
		},
	})
	<-out

	// The 0.50 level empties; the next level becomes the best ask.
	m.applyPriceChange(&types.StreamMessage{
		EventType: "price_change",
		AssetID:   "tok-1",
		Side:      "SELL",
		Price:     "0.50",
		Size:      "0",
		BestBid:   "0.48",
		BestAsk:   "0.52",
	})

	u := recvUpdate(t, out)
	if u.AskSize == nil || u.AskSize.String() != "30" {
		t.Errorf("expected recomputed ask size 30, got %v", u.AskSize)
	}

	if s := m.AskSizeFromLadder("tok-1"); s == nil || s.String() != "30" {
		t.Errorf("expected ladder fallback 30, got %v", s)
	}
}
