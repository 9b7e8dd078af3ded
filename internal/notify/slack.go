package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// Slack posts notifications to an incoming webhook. Sends are detached so
// callers never block on Slack.
type Slack struct {
	rest   *resty.Client
	url    string
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewSlack creates a Slack notifier for a webhook URL.
func NewSlack(webhookURL string, logger *zap.Logger) *Slack {
	rest := resty.New().SetTimeout(10 * time.Second)

	return &Slack{
		rest:   rest,
		url:    webhookURL,
		logger: logger,
	}
}

func (s *Slack) post(text string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		resp, err := s.rest.R().
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"text": text}).
			Post(s.url)
		if err != nil {
			s.logger.Debug("slack-notify-failed", zap.Error(err))
			return
		}
		if resp.StatusCode() != http.StatusOK {
			s.logger.Debug("slack-notify-rejected", zap.Int("status", resp.StatusCode()))
		}
	}()
}

func (s *Slack) NotifyStartup(mode string) {
	s.post(fmt.Sprintf("Arbitrage scanner started [%s]", mode))
}

func (s *Slack) NotifyShutdown(reason string) {
	s.post(fmt.Sprintf("Arbitrage scanner shutting down (%s)", reason))
}

func (s *Slack) NotifyArbitrage(alert *types.Alert) {
	s.post(fmt.Sprintf("Arbitrage: %s | YES %s + NO %s = %s | profit %s%%",
		alert.Market.Question,
		alert.YesAsk.StringFixed(4),
		alert.NoAsk.StringFixed(4),
		alert.Combined.StringFixed(4),
		alert.Profit.Mul(decimal.NewFromInt(100)).StringFixed(2)))
}

func (s *Slack) NotifyPartialFill(result *types.ExecutionResult) {
	s.post(fmt.Sprintf(":warning: PARTIAL fill on %s - imbalanced position (yes=%q no=%q)",
		result.Market.Slug, result.Yes.OrderID, result.No.OrderID))
}

// Close waits for in-flight sends, bounded by the context.
func (s *Slack) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
