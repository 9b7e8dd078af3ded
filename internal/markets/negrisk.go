package markets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/cache"
)

// negRiskTTL keeps flags for a full day; a token's clearing contract
// never changes within a market's lifetime.
const negRiskTTL = 24 * time.Hour

// NegRiskCache resolves and caches the neg_risk flag per token. The flag
// selects which of the two exchange contracts clears a market's orders,
// so routing must never pay the lookup on the submission hot path.
type NegRiskCache struct {
	rest   *resty.Client
	cache  cache.Cache
	logger *zap.Logger
}

// NewNegRiskCache creates a neg-risk resolver against the CLOB API.
func NewNegRiskCache(clobURL string, c cache.Cache, logger *zap.Logger) *NegRiskCache {
	rest := resty.New().
		SetBaseURL(clobURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &NegRiskCache{
		rest:   rest,
		cache:  c,
		logger: logger,
	}
}

type negRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

func negRiskKey(tokenID string) string {
	return "negrisk:" + tokenID
}

// Prefetch resolves the flag for every token. Fired in the background
// right after the market set loads so execution never blocks on it.
func (n *NegRiskCache) Prefetch(ctx context.Context, tokenIDs []string) {
	start := time.Now()
	resolved := 0

	for _, tokenID := range tokenIDs {
		if ctx.Err() != nil {
			return
		}
		if _, ok := n.cache.Get(negRiskKey(tokenID)); ok {
			continue
		}

		flag, err := n.fetch(ctx, tokenID)
		if err != nil {
			n.logger.Debug("neg-risk-prefetch-failed",
				zap.String("token-id", tokenID),
				zap.Error(err))
			continue
		}

		n.cache.Set(negRiskKey(tokenID), flag, negRiskTTL)
		resolved++
	}

	NegRiskPrefetchedTotal.Add(float64(resolved))

	n.logger.Info("neg-risk-prefetch-complete",
		zap.Int("tokens", len(tokenIDs)),
		zap.Int("resolved", resolved),
		zap.Duration("took", time.Since(start)))
}

// Seed stores an already-known flag, e.g. from Gamma market metadata.
func (n *NegRiskCache) Seed(tokenID string, negRisk bool) {
	n.cache.Set(negRiskKey(tokenID), negRisk, negRiskTTL)
}

// Lookup returns the cached flag, fetching synchronously on a miss.
func (n *NegRiskCache) Lookup(ctx context.Context, tokenID string) (bool, error) {
	if v, ok := n.cache.Get(negRiskKey(tokenID)); ok {
		if flag, ok := v.(bool); ok {
			return flag, nil
		}
	}

	flag, err := n.fetch(ctx, tokenID)
	if err != nil {
		return false, err
	}

	n.cache.Set(negRiskKey(tokenID), flag, negRiskTTL)
	return flag, nil
}

func (n *NegRiskCache) fetch(ctx context.Context, tokenID string) (bool, error) {
	var out negRiskResponse
	resp, err := n.rest.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&out).
		Get("/neg-risk")
	if err != nil {
		return false, fmt.Errorf("fetch neg-risk: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("unexpected status code %d", resp.StatusCode())
	}

	return out.NegRisk, nil
}
