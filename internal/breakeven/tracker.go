// Package breakeven implements BreakevenTracker: a per-signal
// single-shot detector that arms a breakeven stop once price has moved
// one round-trip cost past entry.
//
// Structured as the same per-entity tracker idiom as internal/partial.
package breakeven

import (
	"sync"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// Tracker arms a one-time breakeven stop per signal.
type Tracker struct {
	mu     sync.Mutex
	bus    *events.Bus
	armed  map[string]bool
}

// New creates a Tracker publishing breakeven events to bus.
func New(bus *events.Bus) *Tracker {
	return &Tracker{bus: bus, armed: make(map[string]bool)}
}

// Check arms sig's breakeven stop if currentPrice has moved at least
// threshold (2*(slippage+fee)) in the favorable direction since entry,
// and the signal has not already armed. Idempotent: repeated calls after
// the first arm are no-ops. Returns whether this call armed it.
func (t *Tracker) Check(sig *types.Signal, currentPrice, threshold decimal.Decimal, now time.Time) bool {
	t.mu.Lock()
	if t.armed[sig.ID] || sig.BreakevenArmed {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()

	moved := currentPrice.Sub(sig.PriceOpen).Div(sig.PriceOpen)
	if sig.Direction == types.Short {
		moved = moved.Neg()
	}
	if moved.LessThan(threshold) {
		return false
	}

	t.mu.Lock()
	if t.armed[sig.ID] {
		t.mu.Unlock()
		return false
	}
	t.armed[sig.ID] = true
	t.mu.Unlock()

	entry := sig.PriceOpen
	sig.TrailingStopLoss = &entry
	sig.BreakevenArmed = true

	if t.bus != nil {
		t.bus.Publish(events.Event{
			Channel: events.Breakeven,
			Payload: events.BreakevenEvent{
				SignalID: sig.ID,
				Symbol:   sig.Symbol,
				Price:    currentPrice,
				At:       now,
			},
		})
	}
	return true
}

// ForceArm arms sig's breakeven stop unconditionally at currentPrice,
// ignoring the threshold check, but remains idempotent: a signal already
// armed is a no-op. Backs StrategyCore.breakeven(currentPrice).
func (t *Tracker) ForceArm(sig *types.Signal, currentPrice decimal.Decimal, now time.Time) bool {
	t.mu.Lock()
	if t.armed[sig.ID] || sig.BreakevenArmed {
		t.mu.Unlock()
		return false
	}
	t.armed[sig.ID] = true
	t.mu.Unlock()

	entry := sig.PriceOpen
	sig.TrailingStopLoss = &entry
	sig.BreakevenArmed = true

	if t.bus != nil {
		t.bus.Publish(events.Event{
			Channel: events.Breakeven,
			Payload: events.BreakevenEvent{
				SignalID: sig.ID,
				Symbol:   sig.Symbol,
				Price:    currentPrice,
				At:       now,
			},
		})
	}
	return true
}

// Forget drops tracked arm state for signalID, called on close/cancel.
func (t *Tracker) Forget(signalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.armed, signalID)
}
