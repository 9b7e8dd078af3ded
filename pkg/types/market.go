package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Market represents a binary Polymarket market from the Gamma API.
// Immutable within a refresh cycle.
type Market struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Slug      string    `json:"slug"`
	Closed    bool      `json:"closed"`
	Active    bool      `json:"active"`
	NegRisk   bool      `json:"negRisk"`
	EndDate   time.Time `json:"endDate"` // zero when the resolution date is unknown
	Liquidity decimal.Decimal

	YesToken Token `json:"-"` // Populated from outcomes + clobTokenIds
	NoToken  Token `json:"-"`

	Outcomes   string `json:"outcomes"`     // JSON string: "[\"Yes\", \"No\"]"
	ClobTokens string `json:"clobTokenIds"` // JSON string: "[\"token1\", \"token2\"]"
}

// Token is one outcome token of a binary market.
type Token struct {
	TokenID string
	Side    Side
}

// Side designates which half of the market a token represents.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// UnmarshalJSON parses the Gamma payload, including the string-wrapped
// outcomes/clobTokenIds arrays and the string liquidity figure.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct {
		LiquidityStr string `json:"liquidity"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.LiquidityStr != "" {
		liq, err := decimal.NewFromString(aux.LiquidityStr)
		if err == nil {
			m.Liquidity = liq
		}
	}

	if m.Outcomes != "" && m.ClobTokens != "" {
		var outcomes []string
		var tokenIDs []string

		if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil {
			if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err == nil {
				for i, outcome := range outcomes {
					if i >= len(tokenIDs) {
						break
					}
					switch outcome {
					case "Yes", "YES":
						m.YesToken = Token{TokenID: tokenIDs[i], Side: SideYes}
					case "No", "NO":
						m.NoToken = Token{TokenID: tokenIDs[i], Side: SideNo}
					}
				}
			}
		}
	}

	return nil
}

// IsBinary reports whether both outcome tokens were resolved.
func (m *Market) IsBinary() bool {
	return m.YesToken.TokenID != "" && m.NoToken.TokenID != ""
}

// TokenIDs returns the YES and NO token ids in order.
func (m *Market) TokenIDs() []string {
	return []string{m.YesToken.TokenID, m.NoToken.TokenID}
}

// DaysUntilResolution returns whole days until the market resolves.
// The second return is false when the resolution date is unknown.
// Naive timestamps are treated as UTC before comparison.
func (m *Market) DaysUntilResolution(now time.Time) (int, bool) {
	if m.EndDate.IsZero() {
		return 0, false
	}
	end := m.EndDate
	if end.Location() == time.Local {
		end = time.Date(end.Year(), end.Month(), end.Day(),
			end.Hour(), end.Minute(), end.Second(), end.Nanosecond(), time.UTC)
	}
	return int(end.UTC().Sub(now.UTC()).Hours() / 24), true
}
