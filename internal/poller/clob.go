package poller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/polyarb/polyarb/pkg/types"
)

// CLOBFetcher fetches order books over HTTP from the CLOB API.
type CLOBFetcher struct {
	rest *resty.Client
}

// NewCLOBFetcher creates a book fetcher against the CLOB base URL.
func NewCLOBFetcher(baseURL string) *CLOBFetcher {
	return &CLOBFetcher{
		rest: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

type bookResponse struct {
	Bids []types.PriceLevel `json:"bids"`
	Asks []types.PriceLevel `json:"asks"`
}

// FetchBook fetches the full ladder and reduces it to a top-of-book
// snapshot update.
func (c *CLOBFetcher) FetchBook(ctx context.Context, tokenID string) (*types.BookUpdate, error) {
	var book bookResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&book).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("fetch book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode())
	}

	update := &types.BookUpdate{
		TokenID:   tokenID,
		Snapshot:  true,
		Timestamp: time.Now(),
	}

	// best bid = max bid price, best ask = min ask price
	for _, lvl := range book.Bids {
		price := types.ParseDecimal(lvl.Price)
		if price == nil {
			continue
		}
		if update.BestBid == nil || price.GreaterThan(*update.BestBid) {
			update.BestBid = price
		}
	}
	for _, lvl := range book.Asks {
		price := types.ParseDecimal(lvl.Price)
		size := types.ParseDecimal(lvl.Size)
		if price == nil {
			continue
		}
		if update.BestAsk == nil || price.LessThan(*update.BestAsk) {
			update.BestAsk = price
			update.AskSize = size
		}
	}

	return update, nil
}
