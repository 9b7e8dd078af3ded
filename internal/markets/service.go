package markets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// MetadataSource is the collaborator that provides the market universe.
type MetadataSource interface {
	FetchActiveMarkets(ctx context.Context, limit int) ([]types.Market, error)
}

// Service owns the tracked market set: candidate selection, the
// token->market index and the periodic refresh.
type Service struct {
	client          MetadataSource
	logger          *zap.Logger
	minLiquidity    decimal.Decimal
	maxMarkets      int
	refreshInterval time.Duration
	tolerance       int

	markets       map[string]*types.Market // market id -> market
	tokenToMarket map[string]string        // token id -> market id
	tokenOrder    []string                 // ordered token list for sharding
	mu            sync.RWMutex

	onReload func(tokens []string, markets []*types.Market)
}

// Config holds service configuration.
type Config struct {
	Client          MetadataSource
	Logger          *zap.Logger
	MinLiquidityUSD decimal.Decimal
	MaxMarkets      int // 250 per connection
	RefreshInterval time.Duration
	Tolerance       int // market-count delta that triggers a resubscribe
}

// New creates a new market service.
func New(cfg *Config) *Service {
	return &Service{
		client:          cfg.Client,
		logger:          cfg.Logger,
		minLiquidity:    cfg.MinLiquidityUSD,
		maxMarkets:      cfg.MaxMarkets,
		refreshInterval: cfg.RefreshInterval,
		tolerance:       cfg.Tolerance,
		markets:         make(map[string]*types.Market),
		tokenToMarket:   make(map[string]string),
	}
}

// OnReload registers the callback fired when the market set is replaced
// beyond the tolerance. Tokens arrive in subscription order.
func (s *Service) OnReload(fn func(tokens []string, markets []*types.Market)) {
	s.onReload = fn
}

// Load fetches the market universe, filters candidates and rebuilds the
// lookup tables. Returns the selected markets sorted by liquidity.
func (s *Service) Load(ctx context.Context) ([]*types.Market, error) {
	fetched, err := s.client.FetchActiveMarkets(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch active markets: %w", err)
	}

	selected := make([]*types.Market, 0, len(fetched))
	for i := range fetched {
		m := &fetched[i]
		if !m.IsBinary() {
			continue
		}
		if m.Liquidity.LessThan(s.minLiquidity) {
			continue
		}
		selected = append(selected, m)
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Liquidity.GreaterThan(selected[j].Liquidity)
	})

	if s.maxMarkets > 0 && len(selected) > s.maxMarkets {
		selected = selected[:s.maxMarkets]
	}

	s.mu.Lock()
	s.markets = make(map[string]*types.Market, len(selected))
	s.tokenToMarket = make(map[string]string, len(selected)*2)
	s.tokenOrder = make([]string, 0, len(selected)*2)
	for _, m := range selected {
		s.markets[m.ID] = m
		s.tokenToMarket[m.YesToken.TokenID] = m.ID
		s.tokenToMarket[m.NoToken.TokenID] = m.ID
		s.tokenOrder = append(s.tokenOrder, m.YesToken.TokenID, m.NoToken.TokenID)
	}
	s.mu.Unlock()

	MarketsTracked.Set(float64(len(selected)))

	s.logger.Info("markets-loaded",
		zap.Int("count", len(selected)),
		zap.String("min-liquidity", s.minLiquidity.String()))

	return selected, nil
}

// RefreshLoop re-fetches the market set periodically. A fetch failure
// logs, skips the cycle and retains the previous set. When the market
// count moves by more than the tolerance, the reload callback fires so
// the pool re-establishes every connection with the new asset list.
func (s *Service) RefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market-refresh-stopping")
			return
		case <-ticker.C:
			oldCount := s.Count()

			selected, err := s.Load(ctx)
			if err != nil {
				RefreshErrorsTotal.Inc()
				s.logger.Error("market-refresh-failed", zap.Error(err))
				continue
			}

			delta := len(selected) - oldCount
			if delta < 0 {
				delta = -delta
			}
			if delta > s.tolerance && s.onReload != nil {
				s.logger.Info("market-set-changed-resubscribing",
					zap.Int("old", oldCount),
					zap.Int("new", len(selected)))
				s.onReload(s.TokenOrder(), selected)
			}
		}
	}
}

// MarketByToken resolves the market owning a token id.
func (s *Service) MarketByToken(tokenID string) (*types.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marketID, ok := s.tokenToMarket[tokenID]
	if !ok {
		return nil, false
	}
	market, ok := s.markets[marketID]
	return market, ok
}

// Market returns the market with the given id.
func (s *Service) Market(marketID string) (*types.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	market, ok := s.markets[marketID]
	return market, ok
}

// TokenOrder returns the ordered token list used for shard slicing.
func (s *Service) TokenOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tokenOrder...)
}

// All returns every tracked market.
func (s *Service) All() []*types.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out
}

// Count returns the number of tracked markets.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markets)
}
