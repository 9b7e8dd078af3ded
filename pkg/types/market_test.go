package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMarketUnmarshalJSON(t *testing.T) {
	payload := `{
		"id": "0xabc",
		"question": "Will it rain tomorrow?",
		"slug": "will-it-rain",
		"active": true,
		"closed": false,
		"negRisk": true,
		"liquidity": "125000.5",
		"outcomes": "[\"Yes\", \"No\"]",
		"clobTokenIds": "[\"111\", \"222\"]"
	}`

	var m Market
	err := json.Unmarshal([]byte(payload), &m)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if m.YesToken.TokenID != "111" || m.YesToken.Side != SideYes {
		t.Errorf("unexpected YES token: %+v", m.YesToken)
	}
	if m.NoToken.TokenID != "222" || m.NoToken.Side != SideNo {
		t.Errorf("unexpected NO token: %+v", m.NoToken)
	}
	if !m.NegRisk {
		t.Error("expected negRisk=true")
	}
	if m.Liquidity.StringFixed(1) != "125000.5" {
		t.Errorf("unexpected liquidity: %s", m.Liquidity)
	}
	if !m.IsBinary() {
		t.Error("expected binary market")
	}
}

func TestMarketUnmarshalJSONMissingTokens(t *testing.T) {
	payload := `{"id": "0xdef", "question": "Incomplete"}`

	var m Market
	err := json.Unmarshal([]byte(payload), &m)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if m.IsBinary() {
		t.Error("expected non-binary market without tokens")
	}
}

func TestDaysUntilResolution(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		endDate  time.Time
		wantDays int
		wantOK   bool
	}{
		{
			name:   "unknown-resolution",
			wantOK: false,
		},
		{
			name:     "five-days-out",
			endDate:  time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC),
			wantDays: 5,
			wantOK:   true,
		},
		{
			name: "naive-timestamp-treated-as-utc",
			// A local-zone timestamp must compare as UTC, not shift by
			// the zone offset.
			endDate:  time.Date(2025, 6, 8, 12, 0, 0, 0, time.Local),
			wantDays: 7,
			wantOK:   true,
		},
		{
			name:     "already-resolved",
			endDate:  time.Date(2025, 5, 25, 12, 0, 0, 0, time.UTC),
			wantDays: -7,
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{EndDate: tt.endDate}

			days, ok := m.DaysUntilResolution(now)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && days != tt.wantDays {
				t.Errorf("expected %d days, got %d", tt.wantDays, days)
			}
		})
	}
}

func TestParseDecimal(t *testing.T) {
	if d := ParseDecimal("0.45"); d == nil || d.String() != "0.45" {
		t.Errorf("unexpected parse result: %v", d)
	}
	if d := ParseDecimal(""); d != nil {
		t.Errorf("expected nil for empty string, got %v", d)
	}
	if d := ParseDecimal("bogus"); d != nil {
		t.Errorf("expected nil for invalid input, got %v", d)
	}
}
