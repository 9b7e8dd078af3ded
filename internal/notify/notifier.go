package notify

import (
	"context"

	"github.com/polyarb/polyarb/pkg/types"
)

// Notifier is the operator notification sink. Implementations must not
// block callers on the hot path.
type Notifier interface {
	NotifyStartup(mode string)
	NotifyShutdown(reason string)
	NotifyArbitrage(alert *types.Alert)
	NotifyPartialFill(result *types.ExecutionResult)
	Close(ctx context.Context)
}

// Nop is a Notifier that does nothing.
type Nop struct{}

func (Nop) NotifyStartup(string)                        {}
func (Nop) NotifyShutdown(string)                       {}
func (Nop) NotifyArbitrage(*types.Alert)                {}
func (Nop) NotifyPartialFill(*types.ExecutionResult)    {}
func (Nop) Close(context.Context)                       {}
