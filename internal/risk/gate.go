// Package risk implements RiskGate: a per-risk-profile in-memory set of
// open positions that admits or rejects proposed signals.
//
// Unlike SignalValidator's accumulate-everything contract, the gate's
// checks short-circuit: the first failing predicate rejects immediately
// with its message as the note.
package risk

import (
	"fmt"
	"sync"

	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"go.uber.org/zap"
)

// Gate holds the open-position set for one RiskProfile in one mode
// (live or backtest). Each (profile, mode) pair gets its own Gate and its
// own mutex, so contention on one profile never blocks another.
type Gate struct {
	mu       sync.Mutex
	logger   *zap.Logger
	bus      *events.Bus
	profile  types.RiskProfile
	open     map[types.PositionKey]struct{}
}

// New creates a Gate for profile, publishing risk-reject events to bus.
func New(logger *zap.Logger, bus *events.Bus, profile types.RiskProfile) *Gate {
	return &Gate{
		logger:  logger,
		bus:     bus,
		profile: profile,
		open:    make(map[types.PositionKey]struct{}),
	}
}

// CheckSignal runs every configured validation in order against proposal;
// the first one to return an error causes rejection. On reject, publishes
// a risk-reject event and returns the error (wrapping errs.ErrRiskRejected).
// On allow, returns nil with no side effects.
func (g *Gate) CheckSignal(proposal *types.Signal) error {
	g.mu.Lock()
	count := len(g.open)
	active := make([]types.PositionKey, 0, count)
	for k := range g.open {
		active = append(active, k)
	}
	g.mu.Unlock()

	if g.profile.MaxConcurrentPositions > 0 && count >= g.profile.MaxConcurrentPositions {
		note := fmt.Sprintf("max concurrent positions reached (%d)", g.profile.MaxConcurrentPositions)
		g.reject(proposal, count, note)
		return fmt.Errorf("%w: %s", errs.ErrRiskRejected, note)
	}

	for _, v := range g.profile.Validations {
		if err := v.Check(proposal, count, active); err != nil {
			g.reject(proposal, count, err.Error())
			return fmt.Errorf("%w: %s", errs.ErrRiskRejected, err.Error())
		}
	}

	return nil
}

func (g *Gate) reject(proposal *types.Signal, count int, note string) {
	g.logger.Debug("risk gate rejected signal",
		zap.String("symbol", proposal.Symbol),
		zap.String("strategy", proposal.StrategyName),
		zap.String("note", note))
	if g.bus != nil {
		g.bus.Publish(events.Event{
			Channel: events.RiskReject,
			Payload: events.RiskRejectEvent{
				Symbol:            proposal.Symbol,
				StrategyName:      proposal.StrategyName,
				Note:              note,
				ActivePositionCnt: count,
			},
		})
	}
}

// AddSignal inserts (symbol, strategyName) into the open-position set.
func (g *Gate) AddSignal(symbol, strategyName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open[types.PositionKey{StrategyName: strategyName, Symbol: symbol}] = struct{}{}
}

// RemoveSignal deletes (symbol, strategyName) from the open-position set.
func (g *Gate) RemoveSignal(symbol, strategyName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.open, types.PositionKey{StrategyName: strategyName, Symbol: symbol})
}

// OpenCount returns the current number of open positions under this
// profile, for reporting/testing.
func (g *Gate) OpenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.open)
}
