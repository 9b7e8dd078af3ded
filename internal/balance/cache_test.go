package balance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubChain struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	positions decimal.Decimal
	err       error
	calls     int
}

func (s *stubChain) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.balance, nil
}

func (s *stubChain) PositionsValue(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions, nil
}

type snapshotRecorder struct {
	mu    sync.Mutex
	count int
	usdc  decimal.Decimal
	total decimal.Decimal
}

func (s *snapshotRecorder) SavePortfolioSnapshot(ts time.Time, usdc, totalUSD, positionsValue decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.usdc = usdc
	s.total = totalUSD
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReserve(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		cost        string
		wantOK      bool
		wantBalance string
	}{
		{
			name:        "covered",
			balance:     "100",
			cost:        "46.50",
			wantOK:      true,
			wantBalance: "53.5",
		},
		{
			name:        "exact",
			balance:     "46.50",
			cost:        "46.50",
			wantOK:      true,
			wantBalance: "0",
		},
		{
			name:        "insufficient",
			balance:     "20",
			cost:        "46.50",
			wantOK:      false,
			wantBalance: "20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&stubChain{}, nil, zap.NewNop())
			c.balance = d(tt.balance)

			ok := c.Reserve(d(tt.cost))
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if c.Balance().String() != tt.wantBalance {
				t.Errorf("expected balance %s, got %s", tt.wantBalance, c.Balance())
			}
			if c.Balance().IsNegative() {
				t.Error("balance must never go negative after a reservation")
			}
		})
	}
}

func TestRefreshReplacesCache(t *testing.T) {
	chain := &stubChain{balance: d("150.25"), positions: d("30")}
	sink := &snapshotRecorder{}
	c := New(chain, sink, zap.NewNop())
	c.balance = d("999") // stale value, must be replaced, not merged

	got, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.String() != "150.25" {
		t.Errorf("expected 150.25, got %s", got)
	}
	if c.Balance().String() != "150.25" {
		t.Errorf("expected cached 150.25, got %s", c.Balance())
	}

	if sink.count != 1 {
		t.Fatalf("expected one snapshot, got %d", sink.count)
	}
	if sink.total.String() != "180.25" {
		t.Errorf("expected total 180.25 (usdc + positions), got %s", sink.total)
	}
}

func TestRefreshFailureRetainsStaleValue(t *testing.T) {
	chain := &stubChain{err: errors.New("rpc down")}
	c := New(chain, nil, zap.NewNop())
	c.balance = d("75")

	got, err := c.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got.String() != "75" {
		t.Errorf("expected stale value 75, got %s", got)
	}
	if c.Balance().String() != "75" {
		t.Errorf("expected cache untouched, got %s", c.Balance())
	}
}

func TestRefreshNeverCreditsReservationBack(t *testing.T) {
	// After a reservation, a refresh reflects chain truth; the reserved
	// amount is not blindly restored.
	chain := &stubChain{balance: d("100")}
	c := New(chain, nil, zap.NewNop())

	_, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !c.Reserve(d("40")) {
		t.Fatal("expected reservation to pass")
	}
	if c.Balance().String() != "60" {
		t.Fatalf("expected 60 after reservation, got %s", c.Balance())
	}

	// Chain now reports 58 (partial fill burned some funds).
	chain.mu.Lock()
	chain.balance = d("58")
	chain.mu.Unlock()

	got, _ := c.Refresh(context.Background())
	if got.String() != "58" {
		t.Errorf("expected chain truth 58, got %s", got)
	}
}
