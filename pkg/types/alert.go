package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Alert is an immutable record of an arbitrage opportunity opening.
// Duration is backfilled once, when the opportunity closes.
type Alert struct {
	ID          string
	Market      *Market
	YesAsk      decimal.Decimal
	NoAsk       decimal.Decimal
	Combined    decimal.Decimal
	Profit      decimal.Decimal
	YesSize     decimal.Decimal
	NoSize      decimal.Decimal
	DetectedAt  time.Time
	FirstSeen   time.Time
	IsNewOpen   bool // true the first time this opportunity is seen
	DaysUntil   int  // valid only when HasEndDate
	HasEndDate  bool
}

// String renders the alert the way the scanner logs it.
func (a *Alert) String() string {
	return fmt.Sprintf("Alert[%s] yes=%s no=%s combined=%s profit=%s%%",
		a.Market.Slug,
		a.YesAsk.StringFixed(4),
		a.NoAsk.StringFixed(4),
		a.Combined.StringFixed(4),
		a.Profit.Mul(decimal.NewFromInt(100)).StringFixed(2))
}

// NearMissReason classifies why a detected opportunity was not executed.
const (
	ReasonInsufficientLiquidity = "insufficient_liquidity"
)

// InsufficientBalanceReason renders the balance near-miss reason with the
// amounts involved, matching the persisted record format.
func InsufficientBalanceReason(required, available decimal.Decimal) string {
	return fmt.Sprintf("insufficient_balance (need $%s, have $%s)",
		required.StringFixed(2), available.StringFixed(2))
}

// NearMiss is a record of an opportunity that failed a pre-submit guard.
type NearMiss struct {
	Alert       *Alert
	MinRequired decimal.Decimal
	Reason      string
	Timestamp   time.Time
}

// ExecutionStatus is the aggregate outcome of a paired submission.
type ExecutionStatus string

const (
	StatusFilled  ExecutionStatus = "FILLED"
	StatusPartial ExecutionStatus = "PARTIAL"
	StatusFailed  ExecutionStatus = "FAILED"
	StatusSkipped ExecutionStatus = "SKIPPED"
)

// OrderOutcome captures one leg of a paired submission.
type OrderOutcome struct {
	OrderID    string
	Status     string
	Price      decimal.Decimal
	Size       decimal.Decimal
	FilledSize decimal.Decimal
	Err        error
}

// Filled reports whether the leg was accepted by the exchange.
func (o *OrderOutcome) Filled() bool {
	return o.Err == nil && o.OrderID != ""
}

// ExecutionResult is the aggregate record of one execution attempt.
type ExecutionResult struct {
	Timestamp      time.Time
	Market         *Market
	Status         ExecutionStatus
	Yes            OrderOutcome
	No             OrderOutcome
	TradeSize      decimal.Decimal
	TotalCost      decimal.Decimal
	ExpectedProfit decimal.Decimal
}
