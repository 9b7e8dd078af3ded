package detector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/types"
)

// nearMissMargin is how far below the configured threshold a positive
// spread still gets traced as a near-miss.
var nearMissMargin = decimal.RequireFromString("0.005")

// MarketIndex resolves tokens to their markets.
type MarketIndex interface {
	MarketByToken(tokenID string) (*types.Market, bool)
}

// LadderFallback reads cached ladder ask sizes when an update carried none.
type LadderFallback interface {
	AskSizeAt(tokenID string) *decimal.Decimal
}

// Sink receives fire-and-forget persistence work; implementations must
// never block the caller.
type Sink interface {
	SaveAlert(alert *types.Alert)
	BackfillAlertDuration(market string, durationSecs float64)
}

// Callback is invoked for every qualifying update of an open opportunity.
type Callback func(alert *types.Alert)

// Detector evaluates the YES+NO inequality on every top-of-book change
// and tracks opportunity lifetimes.
type Detector struct {
	cfg    Config
	logger *zap.Logger

	store   *orderbook.Store
	index   MarketIndex
	ladders LadderFallback
	sink    Sink
	onArb   Callback

	active   map[string]time.Time // market id -> first seen
	activeMu sync.Mutex

	bestNearMiss       decimal.Decimal
	bestNearMissMarket string
	nearMissMu         sync.Mutex

	priceUpdates atomic.Uint64
	alertCount   atomic.Uint64

	wg sync.WaitGroup
}

// Config holds detector configuration.
type Config struct {
	Threshold       decimal.Decimal // profit must exceed this to alert
	MaxDaysUntilRes int
	Logger          *zap.Logger
}

// New creates a new detector.
func New(cfg Config, store *orderbook.Store, index MarketIndex, ladders LadderFallback, sink Sink, onArb Callback) *Detector {
	return &Detector{
		cfg:     cfg,
		logger:  cfg.Logger,
		store:   store,
		index:   index,
		ladders: ladders,
		sink:    sink,
		onArb:   onArb,
		active:  make(map[string]time.Time),
	}
}

// Start consumes the store's update channel until the context ends.
func (d *Detector) Start(ctx context.Context) {
	d.logger.Info("detector-starting",
		zap.String("threshold", d.cfg.Threshold.String()),
		zap.Int("max-days", d.cfg.MaxDaysUntilRes))

	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *Detector) loop(ctx context.Context) {
	defer d.wg.Done()

	updates := d.store.UpdateChan()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("detector-stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			start := time.Now()
			d.OnUpdate(update.TokenID)
			DetectionDurationSeconds.Observe(time.Since(start).Seconds())
		}
	}
}

// OnUpdate re-evaluates the market owning the updated token.
func (d *Detector) OnUpdate(tokenID string) {
	d.priceUpdates.Add(1)

	market, ok := d.index.MarketByToken(tokenID)
	if !ok {
		return
	}

	d.Evaluate(market)
}

// Evaluate runs the detection protocol against a consistent quote of the
// market. Exported so the legacy polling path can drive it directly.
func (d *Detector) Evaluate(market *types.Market) {
	quote := d.store.Quote(market)

	profit, ok := quote.Profit()
	if !ok {
		return // one side still unknown
	}
	combined, _ := quote.CombinedAsk()

	if profit.LessThanOrEqual(d.cfg.Threshold) {
		d.traceNearMiss(market, profit, combined)
		d.closeIfOpen(market)
		return
	}

	// Skip markets resolving too far out; unknown resolution is allowed.
	now := time.Now().UTC()
	days, hasEnd := market.DaysUntilResolution(now)
	if hasEnd && days > d.cfg.MaxDaysUntilRes {
		d.logger.Debug("skipping-arbitrage-resolution-too-far",
			zap.String("market", market.Slug),
			zap.Int("days-until", days))
		RejectedTotal.WithLabelValues("resolution_too_far").Inc()
		return
	}

	d.alertCount.Add(1)

	firstSeen, isNew := d.openLifetime(market.ID, now)

	alert := &types.Alert{
		ID:         uuid.New().String(),
		Market:     market,
		YesAsk:     *quote.YesAsk,
		NoAsk:      *quote.NoAsk,
		Combined:   combined,
		Profit:     profit,
		YesSize:    d.sizeOrFallback(quote.YesSize, market.YesToken.TokenID),
		NoSize:     d.sizeOrFallback(quote.NoSize, market.NoToken.TokenID),
		DetectedAt: now,
		FirstSeen:  firstSeen,
		IsNewOpen:  isNew,
		DaysUntil:  days,
		HasEndDate: hasEnd,
	}

	d.logger.Info("arbitrage-detected",
		zap.String("market", market.Slug),
		zap.String("yes-ask", alert.YesAsk.StringFixed(4)),
		zap.String("no-ask", alert.NoAsk.StringFixed(4)),
		zap.String("combined", alert.Combined.StringFixed(4)),
		zap.String("profit-pct", alert.Profit.Mul(decimal.NewFromInt(100)).StringFixed(2)),
		zap.String("yes-size", alert.YesSize.StringFixed(2)),
		zap.String("no-size", alert.NoSize.StringFixed(2)),
		zap.Float64("open-for-secs", now.Sub(firstSeen).Seconds()))

	AlertsTotal.Inc()

	// Callback first; execution is time-critical.
	if d.onArb != nil {
		d.onArb(alert)
	}

	// Persist only the opening of the opportunity; duration is backfilled
	// when it closes.
	if isNew && d.sink != nil {
		d.sink.SaveAlert(alert)
	}
}

// openLifetime returns the first-seen time, creating the lifetime entry
// when the opportunity just opened.
func (d *Detector) openLifetime(marketID string, now time.Time) (time.Time, bool) {
	d.activeMu.Lock()
	defer d.activeMu.Unlock()

	if firstSeen, ok := d.active[marketID]; ok {
		return firstSeen, false
	}
	d.active[marketID] = now
	OpenOpportunities.Set(float64(len(d.active)))
	return now, true
}

// closeIfOpen deletes the lifetime entry and backfills the persisted
// alert's duration, at most once per opportunity.
func (d *Detector) closeIfOpen(market *types.Market) {
	d.activeMu.Lock()
	firstSeen, ok := d.active[market.ID]
	if ok {
		delete(d.active, market.ID)
		OpenOpportunities.Set(float64(len(d.active)))
	}
	d.activeMu.Unlock()

	if !ok {
		return
	}

	duration := time.Since(firstSeen).Seconds()
	d.logger.Info("opportunity-closed",
		zap.String("market", market.Slug),
		zap.Float64("duration-secs", duration))

	if d.sink != nil {
		d.sink.BackfillAlertDuration(truncate(market.Question, 60), duration)
	}
}

// traceNearMiss records positive spreads just under the threshold.
func (d *Detector) traceNearMiss(market *types.Market, profit, combined decimal.Decimal) {
	if !profit.IsPositive() {
		return
	}
	if profit.LessThanOrEqual(d.cfg.Threshold.Sub(nearMissMargin)) {
		return
	}

	NearMissesTotal.Inc()
	d.logger.Debug("near-miss-arbitrage",
		zap.String("market", truncate(market.Question, 40)),
		zap.String("profit-pct", profit.Mul(decimal.NewFromInt(100)).StringFixed(3)),
		zap.String("combined", combined.StringFixed(4)))

	d.nearMissMu.Lock()
	if profit.GreaterThan(d.bestNearMiss) {
		d.bestNearMiss = profit
		d.bestNearMissMarket = truncate(market.Question, 40)
	}
	d.nearMissMu.Unlock()
}

func (d *Detector) sizeOrFallback(size *decimal.Decimal, tokenID string) decimal.Decimal {
	if size != nil {
		return *size
	}
	if d.ladders != nil {
		if s := d.ladders.AskSizeAt(tokenID); s != nil {
			return *s
		}
	}
	return decimal.Zero
}

// PriceUpdates returns the running count of processed updates.
func (d *Detector) PriceUpdates() uint64 {
	return d.priceUpdates.Load()
}

// AlertCount returns the running count of arbitrage alerts.
func (d *Detector) AlertCount() uint64 {
	return d.alertCount.Load()
}

// BestNearMiss returns the best sub-threshold spread seen so far.
func (d *Detector) BestNearMiss() (decimal.Decimal, string) {
	d.nearMissMu.Lock()
	defer d.nearMissMu.Unlock()
	return d.bestNearMiss, d.bestNearMissMarket
}

// OpenCount returns the number of currently open opportunities.
func (d *Detector) OpenCount() int {
	d.activeMu.Lock()
	defer d.activeMu.Unlock()
	return len(d.active)
}

// Close waits for the detection loop to exit.
func (d *Detector) Close() {
	d.wg.Wait()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
