package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// StreamMessage represents a message from the market data WebSocket.
type StreamMessage struct {
	EventType string       `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids,omitempty"`
	Asks      []PriceLevel `json:"asks,omitempty"`

	// price_change fields
	Side    string `json:"side,omitempty"` // "BUY" or "SELL"
	Price   string `json:"price,omitempty"`
	Size    string `json:"size,omitempty"`
	BestBid string `json:"best_bid,omitempty"`
	BestAsk string `json:"best_ask,omitempty"`
}

// PriceLevel is a single price level in the orderbook.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookUpdate is a normalized top-of-book update emitted by a stream
// connection after it has applied the raw event to its ladder cache.
// Nil fields mean the side is absent from the book.
type BookUpdate struct {
	TokenID   string
	BestBid   *decimal.Decimal
	BestAsk   *decimal.Decimal
	AskSize   *decimal.Decimal
	Snapshot  bool // true for full book events
	Timestamp time.Time
}

// TopOfBook holds the best bid/ask state for one token.
// Absent sides are nil; arbitrage evaluation requires both asks non-nil.
type TopOfBook struct {
	TokenID   string
	BestBid   *decimal.Decimal
	BestAsk   *decimal.Decimal
	AskSize   *decimal.Decimal
	Revision  uint64
	UpdatedAt time.Time
}

// Clone returns a copy safe to hand out of the store.
// decimal.Decimal is immutable, so sharing the pointed-to values is fine.
func (t *TopOfBook) Clone() *TopOfBook {
	cp := *t
	return &cp
}

// ParseDecimal converts a wire string to a decimal, returning nil for
// empty input.
func ParseDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// UnmarshalJSON tolerates the venue sending numeric fields either as
// strings or bare numbers.
func (p *PriceLevel) UnmarshalJSON(data []byte) error {
	type Alias PriceLevel
	aux := (*Alias)(p)
	if err := json.Unmarshal(data, aux); err == nil {
		return nil
	}

	var raw struct {
		Price json.Number `json:"price"`
		Size  json.Number `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Price = raw.Price.String()
	p.Size = raw.Size.String()
	return nil
}
