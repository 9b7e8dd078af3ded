package markets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

type fakeSource struct {
	markets []types.Market
	err     error
}

func (f *fakeSource) FetchActiveMarkets(ctx context.Context, limit int) ([]types.Market, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

func market(id string, liquidity string, binary bool) types.Market {
	m := types.Market{
		ID:        id,
		Slug:      "slug-" + id,
		Question:  "Question " + id,
		Liquidity: decimal.RequireFromString(liquidity),
	}
	if binary {
		m.YesToken = types.Token{TokenID: id + "-yes", Side: types.SideYes}
		m.NoToken = types.Token{TokenID: id + "-no", Side: types.SideNo}
	}
	return m
}

func TestLoadFiltersAndSorts(t *testing.T) {
	source := &fakeSource{markets: []types.Market{
		market("low", "500", true),       // below liquidity floor
		market("mid", "20000", true),
		market("top", "90000", true),
		market("nonbinary", "50000", false), // missing tokens
	}}

	svc := New(&Config{
		Client:          source,
		Logger:          zap.NewNop(),
		MinLiquidityUSD: decimal.RequireFromString("10000"),
		MaxMarkets:      10,
	})

	selected, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(selected) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(selected))
	}
	if selected[0].ID != "top" || selected[1].ID != "mid" {
		t.Errorf("expected liquidity-descending order, got %s, %s", selected[0].ID, selected[1].ID)
	}

	// Token order interleaves YES then NO per market, preserving rank.
	order := svc.TokenOrder()
	want := []string{"top-yes", "top-no", "mid-yes", "mid-no"}
	if len(order) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(order))
	}
	for i, tok := range want {
		if order[i] != tok {
			t.Errorf("token %d: expected %s, got %s", i, tok, order[i])
		}
	}

	if m, ok := svc.MarketByToken("mid-no"); !ok || m.ID != "mid" {
		t.Errorf("token index lookup failed: %v %v", m, ok)
	}
	if _, ok := svc.MarketByToken("low-yes"); ok {
		t.Error("filtered market must not be indexed")
	}
}

func TestLoadCapsAtMaxMarkets(t *testing.T) {
	var universe []types.Market
	for i := range 30 {
		universe = append(universe, market(fmt.Sprintf("m%02d", i), fmt.Sprintf("%d", 10000+i), true))
	}

	svc := New(&Config{
		Client:          &fakeSource{markets: universe},
		Logger:          zap.NewNop(),
		MinLiquidityUSD: decimal.Zero,
		MaxMarkets:      5,
	})

	selected, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(selected) != 5 {
		t.Errorf("expected cap at 5 markets, got %d", len(selected))
	}
	if len(svc.TokenOrder()) != 10 {
		t.Errorf("expected 10 tokens, got %d", len(svc.TokenOrder()))
	}
}

func TestLoadErrorRetainsPreviousSet(t *testing.T) {
	source := &fakeSource{markets: []types.Market{market("m1", "20000", true)}}

	svc := New(&Config{
		Client:          source,
		Logger:          zap.NewNop(),
		MinLiquidityUSD: decimal.Zero,
		MaxMarkets:      10,
	})

	_, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	source.err = errors.New("gamma down")
	_, err = svc.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	// A failed fetch must not clobber the previous market set.
	if svc.Count() != 1 {
		t.Errorf("expected previous set retained, got %d markets", svc.Count())
	}
}
