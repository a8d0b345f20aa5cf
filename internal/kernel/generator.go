package kernel

import (
	"context"
	"time"

	"github.com/atlas-desktop/strategy-kernel/pkg/types"
)

// SignalGenerator is the user-supplied proposal callback, invoked
// synchronously on demand by StrategyCore and never scheduled by the
// kernel itself. Returns (nil, nil) to propose nothing this tick.
type SignalGenerator interface {
	Generate(ctx context.Context, symbol string, now time.Time) (*types.Proposal, error)
}

// GeneratorFunc adapts a plain function to the SignalGenerator
// interface.
type GeneratorFunc func(ctx context.Context, symbol string, now time.Time) (*types.Proposal, error)

// Generate implements SignalGenerator.
func (f GeneratorFunc) Generate(ctx context.Context, symbol string, now time.Time) (*types.Proposal, error) {
	return f(ctx, symbol, now)
}
