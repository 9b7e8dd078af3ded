package redemption

import (
	"context"

	"github.com/shopspring/decimal"
)

// Result summarises one redemption sweep.
type Result struct {
	Skipped    bool
	SkipReason string
	Redeemed   int
	TotalValue decimal.Decimal
}

// Redeemer is the settlement collaborator: it finds resolved positions
// and claims their payouts. Settlement itself is outside this system;
// the orchestrator only schedules the sweeps.
type Redeemer interface {
	CheckAndRedeem(ctx context.Context) (Result, error)
}

// Nop is a Redeemer that always skips. Used in dry-run mode and when no
// redemption collaborator is wired.
type Nop struct{}

func (Nop) CheckAndRedeem(context.Context) (Result, error) {
	return Result{Skipped: true, SkipReason: "redemption not configured"}, nil
}
