// Package partial implements PartialTracker: a per-signal milestone
// detector for profit/loss percentage bands, recording executed partial
// closes with weights for PnL.
//
// State is a mutex-guarded map keyed by signal ID, following the same
// per-entity tracker shape used elsewhere in the kernel.
package partial

import (
	"sort"
	"sync"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// Bands is the default set of profit/loss percentage milestones the
// tracker watches for, in ascending order.
var Bands = []int{10, 20, 30, 40, 50, 60, 70, 80, 90}

type signalState struct {
	emittedProfit map[int]bool
	emittedLoss   map[int]bool
}

// Tracker watches every pending signal's revenue percentage and fires
// partial-profit/partial-loss events as bands are crossed.
type Tracker struct {
	mu     sync.Mutex
	bus    *events.Bus
	states map[string]*signalState
}

// New creates a Tracker publishing band-crossing events to bus.
func New(bus *events.Bus) *Tracker {
	return &Tracker{bus: bus, states: make(map[string]*signalState)}
}

func (t *Tracker) state(signalID string) *signalState {
	st, ok := t.states[signalID]
	if !ok {
		st = &signalState{emittedProfit: make(map[int]bool), emittedLoss: make(map[int]bool)}
		t.states[signalID] = st
	}
	return st
}

// Tick computes the current revenue percentage for sig at currentPrice
// and publishes any newly crossed band events, in ascending band order.
func (t *Tracker) Tick(sig *types.Signal, currentPrice decimal.Decimal, now time.Time) {
	revenuePercent := RevenuePercent(sig, currentPrice)

	t.mu.Lock()
	st := t.state(sig.ID)
	t.mu.Unlock()

	hundred := decimal.NewFromInt(100)
	revFloat, _ := revenuePercent.Mul(hundred).Float64()

	if revFloat > 0 {
		for _, band := range sortedBands() {
			if revFloat >= float64(band) && !st.emittedProfit[band] {
				st.emittedProfit[band] = true
				t.publish(sig, types.PartialProfit, band, currentPrice, now)
			}
		}
	} else if revFloat < 0 {
		loss := -revFloat
		for _, band := range sortedBands() {
			if loss >= float64(band) && !st.emittedLoss[band] {
				st.emittedLoss[band] = true
				t.publish(sig, types.PartialLoss, band, currentPrice, now)
			}
		}
	}
}

func sortedBands() []int {
	out := append([]int(nil), Bands...)
	sort.Ints(out)
	return out
}

func (t *Tracker) publish(sig *types.Signal, kind types.PartialKind, band int, price decimal.Decimal, now time.Time) {
	if t.bus == nil {
		return
	}
	ch := events.PartialProfit
	if kind == types.PartialLoss {
		ch = events.PartialLoss
	}
	t.bus.Publish(events.Event{
		Channel: ch,
		Payload: events.PartialEvent{
			SignalID: sig.ID,
			Symbol:   sig.Symbol,
			Kind:     kind,
			Percent:  decimal.NewFromInt(int64(band)),
			Price:    price,
			At:       now,
		},
	})
}

// RevenuePercent returns the signed, direction-adjusted change of
// currentPrice relative to sig's entry (priceOpen) as a fraction (0.1 for
// +10%): positive when favorable.
func RevenuePercent(sig *types.Signal, currentPrice decimal.Decimal) decimal.Decimal {
	diff := currentPrice.Sub(sig.PriceOpen).Div(sig.PriceOpen)
	if sig.Direction == types.Short {
		diff = diff.Neg()
	}
	return diff
}

// RecordClose appends an executed partial close to sig's history,
// capping the cumulative percent at 100, and returns the clamped percent
// actually recorded.
func RecordClose(sig *types.Signal, kind types.PartialKind, percent, price decimal.Decimal, now time.Time) decimal.Decimal {
	already := sig.ClosedPercent()
	remaining := decimal.NewFromInt(100).Sub(already)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if percent.GreaterThan(remaining) {
		percent = remaining
	}
	sig.Partials = append(sig.Partials, types.Partial{
		Kind:    kind,
		Percent: percent,
		Price:   price,
		At:      now,
	})
	return percent
}

// Forget drops tracked band state for signalID, called on close/cancel.
func (t *Tracker) Forget(signalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, signalID)
}
