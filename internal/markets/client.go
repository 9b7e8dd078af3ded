package markets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// Client fetches market metadata from the Gamma API.
type Client struct {
	rest   *resty.Client
	logger *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "polyarb/1.0")

	return &Client{
		rest:   rest,
		logger: logger,
	}
}

// FetchActiveMarkets pages through active, open markets sorted by
// liquidity descending.
func (c *Client) FetchActiveMarkets(ctx context.Context, limit int) ([]types.Market, error) {
	const pageSize = 500

	var all []types.Market
	offset := 0

	for {
		var page []types.Market
		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"closed":    "false",
				"active":    "true",
				"limit":     fmt.Sprintf("%d", pageSize),
				"offset":    fmt.Sprintf("%d", offset),
				"order":     "liquidity",
				"ascending": "false",
			}).
			SetResult(&page).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("fetch markets: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode(), resp.String())
		}

		all = append(all, page...)

		if len(page) < pageSize || (limit > 0 && len(all) >= limit) {
			break
		}
		offset += pageSize
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	c.logger.Debug("fetched-markets", zap.Int("count", len(all)))

	return all, nil
}

// FetchMarketBySlug finds one market with a single slug-filtered request.
func (c *Client) FetchMarketBySlug(ctx context.Context, slug string) (*types.Market, error) {
	var page []types.Market
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"slug": slug,
		}).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("fetch market by slug: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode())
	}
	if len(page) == 0 {
		return nil, fmt.Errorf("market not found: %s", slug)
	}

	return &page[0], nil
}
