package execution

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

var (
	// liquiditySafetyMargin guards against liquidity decay and racing:
	// only half the visible depth is ever taken.
	liquiditySafetyMargin = decimal.RequireFromString("0.5")

	// minOrderValue is the exchange's $1.00 per-order minimum with a 10%
	// buffer.
	minOrderValue = decimal.RequireFromString("1.10")

	// minSharesFloor is the absolute minimum share count per order.
	minSharesFloor = decimal.NewFromInt(5)
)

// OrderPlacer builds signed orders and submits them.
type OrderPlacer interface {
	BuildOrder(tokenID string, price, shares decimal.Decimal, negRisk bool) (*types.OrderSubmissionRequest, error)
	SubmitOrder(ctx context.Context, req *types.OrderSubmissionRequest) (*types.OrderSubmissionResponse, error)
}

// NegRiskSource resolves which exchange contract clears a token.
type NegRiskSource interface {
	Lookup(ctx context.Context, tokenID string) (bool, error)
}

// Reserver is the balance cache surface the executor needs.
type Reserver interface {
	Balance() decimal.Decimal
	Reserve(cost decimal.Decimal) bool
}

// Sink receives fire-and-forget persistence work.
type Sink interface {
	SaveNearMiss(nm *types.NearMiss)
	SaveExecution(result *types.ExecutionResult)
}

// Notifier surfaces outcomes that need operator attention.
type Notifier interface {
	NotifyPartialFill(result *types.ExecutionResult)
}

// Executor turns opportunities into paired orders and reports an outcome.
// Execute must be called with the orchestrator's execution lock held: the
// reservation model assumes a serial view of the cached balance.
type Executor struct {
	cfg      Config
	logger   *zap.Logger
	client   OrderPlacer
	negRisk  NegRiskSource
	balance  Reserver
	sink     Sink
	notifier Notifier

	// scheduleRefresh requests an async balance refresh after a failed or
	// partial execution; the cache is never credited back directly.
	scheduleRefresh func()

	mu          sync.Mutex
	attempted   int
	filled      int
	totalProfit decimal.Decimal
}

// Config holds executor configuration.
type Config struct {
	DryRun             bool
	MaxPositionSizeUSD decimal.Decimal
	Logger             *zap.Logger
}

// New creates a new executor.
func New(cfg Config, client OrderPlacer, negRisk NegRiskSource, reserver Reserver, sink Sink, notifier Notifier, scheduleRefresh func()) *Executor {
	return &Executor{
		cfg:             cfg,
		logger:          cfg.Logger,
		client:          client,
		negRisk:         negRisk,
		balance:         reserver,
		sink:            sink,
		notifier:        notifier,
		scheduleRefresh: scheduleRefresh,
	}
}

// sizing is the tagged result of the pre-submit pipeline.
type sizing struct {
	ok        bool
	shares    decimal.Decimal
	required  decimal.Decimal // shares x combined ask
	minShares decimal.Decimal
	reason    string // near-miss reason when !ok
}

// sizeAgainstLiquidity runs sizing steps 1-5: liquidity margin, the $1
// minimum-notional rule and the position cap.
func (e *Executor) sizeAgainstLiquidity(alert *types.Alert) sizing {
	raw := decimal.Min(alert.YesSize, alert.NoSize)
	available := raw.Mul(liquiditySafetyMargin).Floor()

	minShares := decimal.Max(
		minOrderValue.Div(alert.YesAsk).Ceil(),
		minOrderValue.Div(alert.NoAsk).Ceil(),
		minSharesFloor,
	)

	if available.LessThan(minShares) {
		return sizing{
			minShares: minShares,
			reason:    types.ReasonInsufficientLiquidity,
		}
	}

	shares := decimal.Min(available, e.cfg.MaxPositionSizeUSD.Div(alert.Combined).Floor())

	return sizing{
		ok:        true,
		shares:    shares,
		required:  shares.Mul(alert.Combined),
		minShares: minShares,
	}
}

// fitToBalance runs sizing steps 6-7 against the cached balance,
// shrinking the trade when it still clears the minimum, and reserving the
// expected cost on success.
func (e *Executor) fitToBalance(alert *types.Alert, s sizing) sizing {
	current := e.balance.Balance()

	if current.LessThan(s.required) {
		if current.LessThan(s.minShares.Mul(alert.Combined)) {
			s.ok = false
			s.reason = types.InsufficientBalanceReason(s.required, current)
			return s
		}

		shrunk := current.Div(alert.Combined).Floor()
		e.logger.Info("reduced-trade-size-to-fit-balance",
			zap.String("market", alert.Market.Slug),
			zap.String("original-size", s.shares.String()),
			zap.String("adjusted-size", shrunk.String()),
			zap.String("balance", current.StringFixed(2)))

		s.shares = shrunk
		s.required = shrunk.Mul(alert.Combined)
	}

	if !e.balance.Reserve(s.required) {
		// The refresh loop moved the balance under us between the read
		// and the reservation; treat it as an insufficient-balance miss.
		s.ok = false
		s.reason = types.InsufficientBalanceReason(s.required, e.balance.Balance())
	}

	return s
}

// Execute sizes and submits one opportunity. The caller holds the
// execution lock for the whole feasibility + reserve + submit sequence.
func (e *Executor) Execute(ctx context.Context, alert *types.Alert) *types.ExecutionResult {
	now := time.Now().UTC()

	s := e.sizeAgainstLiquidity(alert)
	if !s.ok {
		e.recordNearMiss(alert, s, now)
		return &types.ExecutionResult{
			Timestamp: now,
			Market:    alert.Market,
			Status:    types.StatusSkipped,
		}
	}

	if e.cfg.DryRun {
		e.logger.Info("dry-run-skipping-submission",
			zap.String("market", alert.Market.Slug),
			zap.String("size", s.shares.String()),
			zap.String("profit-pct", alert.Profit.Mul(decimal.NewFromInt(100)).StringFixed(2)))
		OpportunitiesSkippedTotal.WithLabelValues("dry_run").Inc()
		return &types.ExecutionResult{
			Timestamp: now,
			Market:    alert.Market,
			Status:    types.StatusSkipped,
			TradeSize: s.shares,
		}
	}

	s = e.fitToBalance(alert, s)
	if !s.ok {
		e.recordNearMiss(alert, s, now)
		return &types.ExecutionResult{
			Timestamp: now,
			Market:    alert.Market,
			Status:    types.StatusSkipped,
		}
	}

	e.mu.Lock()
	e.attempted++
	e.mu.Unlock()

	result := e.submitPair(ctx, alert, s, now)

	e.finalize(alert, result)

	return result
}

// submitPair builds both signed orders before sending either, then
// submits them concurrently. Each leg is independent and may fail.
func (e *Executor) submitPair(ctx context.Context, alert *types.Alert, s sizing, now time.Time) *types.ExecutionResult {
	result := &types.ExecutionResult{
		Timestamp: now,
		Market:    alert.Market,
		TradeSize: s.shares,
		TotalCost: s.required,
	}

	yesNegRisk, err := e.negRisk.Lookup(ctx, alert.Market.YesToken.TokenID)
	if err != nil {
		// Routing through the wrong contract is rejected server-side, so
		// fall back to the market's own flag.
		yesNegRisk = alert.Market.NegRisk
	}
	noNegRisk, err := e.negRisk.Lookup(ctx, alert.Market.NoToken.TokenID)
	if err != nil {
		noNegRisk = alert.Market.NegRisk
	}

	yesReq, yesErr := e.client.BuildOrder(alert.Market.YesToken.TokenID, alert.YesAsk, s.shares, yesNegRisk)
	noReq, noErr := e.client.BuildOrder(alert.Market.NoToken.TokenID, alert.NoAsk, s.shares, noNegRisk)

	if yesErr != nil || noErr != nil {
		// Build/sign failure aborts the opportunity; the reservation is
		// released by refreshing from chain, not by crediting back.
		e.logger.Error("order-build-failed",
			zap.String("market", alert.Market.Slug),
			zap.NamedError("yes-error", yesErr),
			zap.NamedError("no-error", noErr))
		BuildErrorsTotal.Inc()
		result.Status = types.StatusFailed
		result.Yes.Err = yesErr
		result.No.Err = noErr
		return result
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Yes = e.submitLeg(ctx, yesReq, "YES", alert.YesAsk, s.shares)
	}()
	go func() {
		defer wg.Done()
		result.No = e.submitLeg(ctx, noReq, "NO", alert.NoAsk, s.shares)
	}()
	wg.Wait()

	switch {
	case result.Yes.Filled() && result.No.Filled():
		result.Status = types.StatusFilled
		result.ExpectedProfit = s.shares.Mul(alert.Profit)
	case result.Yes.Filled() || result.No.Filled():
		result.Status = types.StatusPartial
	default:
		result.Status = types.StatusFailed
	}

	return result
}

func (e *Executor) submitLeg(ctx context.Context, req *types.OrderSubmissionRequest, side string, price, shares decimal.Decimal) types.OrderOutcome {
	outcome := types.OrderOutcome{
		Price: price,
		Size:  shares,
	}

	resp, err := e.client.SubmitOrder(ctx, req)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.OrderID = resp.OrderID
	outcome.Status = resp.Status
	if filled := types.ParseDecimal(resp.MakingAmount); filled != nil {
		outcome.FilledSize = filled.Shift(-6)
	}

	if !resp.Success || resp.OrderID == "" {
		outcome.Err = &types.OrderError{
			Code:    resp.Status,
			Message: resp.ErrorMsg,
			OrderID: resp.OrderID,
			Side:    side,
		}
	}

	return outcome
}

// finalize classifies the outcome: credit stats on FILLED, refresh the
// balance on PARTIAL/FAILED, and page the operator on PARTIAL.
func (e *Executor) finalize(alert *types.Alert, result *types.ExecutionResult) {
	ExecutionsTotal.WithLabelValues(string(result.Status)).Inc()

	switch result.Status {
	case types.StatusFilled:
		e.mu.Lock()
		e.filled++
		e.totalProfit = e.totalProfit.Add(result.ExpectedProfit)
		cumulative := e.totalProfit
		e.mu.Unlock()

		ExpectedProfitUSD.Add(result.ExpectedProfit.InexactFloat64())

		e.logger.Info("execution-filled",
			zap.String("market", alert.Market.Slug),
			zap.String("size", result.TradeSize.String()),
			zap.String("expected-profit", result.ExpectedProfit.StringFixed(2)),
			zap.String("cumulative-profit", cumulative.StringFixed(2)),
			zap.String("yes-order-id", result.Yes.OrderID),
			zap.String("no-order-id", result.No.OrderID))

	case types.StatusPartial:
		e.logger.Error("execution-partial-IMBALANCED-POSITION",
			zap.String("market", alert.Market.Slug),
			zap.String("yes-order-id", result.Yes.OrderID),
			zap.NamedError("yes-error", result.Yes.Err),
			zap.String("no-order-id", result.No.OrderID),
			zap.NamedError("no-error", result.No.Err))

		if e.scheduleRefresh != nil {
			e.scheduleRefresh()
		}
		if e.notifier != nil {
			e.notifier.NotifyPartialFill(result)
		}

	case types.StatusFailed:
		e.logger.Error("execution-failed",
			zap.String("market", alert.Market.Slug),
			zap.NamedError("yes-error", result.Yes.Err),
			zap.NamedError("no-error", result.No.Err))

		if e.scheduleRefresh != nil {
			e.scheduleRefresh()
		}
	}

	if e.sink != nil {
		e.sink.SaveExecution(result)
	}
}

func (e *Executor) recordNearMiss(alert *types.Alert, s sizing, now time.Time) {
	NearMissesTotal.WithLabelValues(nearMissLabel(s.reason)).Inc()

	minRequired := s.minShares
	if s.reason != types.ReasonInsufficientLiquidity {
		minRequired = s.required
	}

	e.logger.Warn("skipping-arbitrage",
		zap.String("market", alert.Market.Slug),
		zap.String("reason", s.reason),
		zap.String("yes-size", alert.YesSize.StringFixed(2)),
		zap.String("no-size", alert.NoSize.StringFixed(2)),
		zap.String("min-required", minRequired.String()))

	if e.sink != nil {
		e.sink.SaveNearMiss(&types.NearMiss{
			Alert:       alert,
			MinRequired: minRequired,
			Reason:      s.reason,
			Timestamp:   now,
		})
	}
}

func nearMissLabel(reason string) string {
	if reason == types.ReasonInsufficientLiquidity {
		return "insufficient_liquidity"
	}
	return "insufficient_balance"
}

// Stats returns (attempted, filled, cumulative expected profit).
func (e *Executor) Stats() (int, int, decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempted, e.filled, e.totalProfit
}
