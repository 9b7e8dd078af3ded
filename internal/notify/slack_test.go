package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

func TestSlackNotifyArbitrage(t *testing.T) {
	var mu sync.Mutex
	var payloads []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var msg map[string]string
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Errorf("bad payload: %v", err)
		}

		mu.Lock()
		payloads = append(payloads, msg["text"])
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewSlack(server.URL, zap.NewNop())

	yes := decimal.RequireFromString("0.45")
	no := decimal.RequireFromString("0.48")
	s.NotifyArbitrage(&types.Alert{
		Market:   &types.Market{Slug: "test", Question: "Will it notify?"},
		YesAsk:   yes,
		NoAsk:    no,
		Combined: yes.Add(no),
		Profit:   decimal.RequireFromString("0.07"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(payloads))
	}
	if !strings.Contains(payloads[0], "Will it notify?") || !strings.Contains(payloads[0], "7.00%") {
		t.Errorf("unexpected message: %s", payloads[0])
	}
}

func TestNopNotifier(t *testing.T) {
	// Must be safe with zero configuration.
	var n Notifier = Nop{}
	n.NotifyStartup("DRY RUN")
	n.NotifyShutdown("normal")
	n.NotifyArbitrage(nil)
	n.NotifyPartialFill(nil)
	n.Close(context.Background())
}
