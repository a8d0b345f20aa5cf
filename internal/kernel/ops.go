package kernel

import (
	"fmt"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/partial"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// PartialProfit records a user-initiated partial close against the
// current pending signal at the given percent/price, publishing the
// corresponding commit event. Returns errs.ErrLogicInvariant if there is
// no pending signal.
func (c *StrategyCore) PartialProfit(percent, currentPrice decimal.Decimal, now time.Time) error {
	return c.recordPartial(types.PartialProfit, percent, currentPrice, now)
}

// PartialLoss is the loss-side analogue of PartialProfit.
func (c *StrategyCore) PartialLoss(percent, currentPrice decimal.Decimal, now time.Time) error {
	return c.recordPartial(types.PartialLoss, percent, currentPrice, now)
}

func (c *StrategyCore) recordPartial(kind types.PartialKind, percent, currentPrice decimal.Decimal, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return fmt.Errorf("%w: partial close requested with no pending signal", errs.ErrLogicInvariant)
	}

	recorded := partial.RecordClose(c.pending, kind, percent, currentPrice, now)

	if err := c.posStore.WritePending(c.key(), c.pending); err != nil {
		c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
	}

	ch := events.PartialProfit
	if kind == types.PartialLoss {
		ch = events.PartialLoss
	}
	c.bus.Publish(events.Event{
		Channel: ch,
		Payload: events.PartialEvent{
			SignalID: c.pending.ID,
			Symbol:   c.symbol,
			Kind:     kind,
			Percent:  recorded,
			Price:    currentPrice,
			At:       now,
		},
	})
	return nil
}

// TrailingStop adjusts the trailing stop-loss distance. It only moves in
// the favorable direction (never loosens beyond a previous tighten), and
// never crosses the entry price. A call that would violate monotonicity
// is a silent no-op: the reversed update is simply not applied, not
// treated as an error.
func (c *StrategyCore) TrailingStop(percentShift, currentPrice decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return fmt.Errorf("%w: trailingStop requested with no pending signal", errs.ErrLogicInvariant)
	}
	sig := c.pending
	old := sig.EffectiveStopLoss()
	one := decimal.NewFromInt(1)

	var candidate decimal.Decimal
	if sig.Direction == types.Long {
		candidate = currentPrice.Mul(one.Sub(percentShift))
		if candidate.LessThan(old) {
			return nil
		}
		if candidate.GreaterThan(sig.PriceOpen) {
			candidate = sig.PriceOpen
		}
	} else {
		candidate = currentPrice.Mul(one.Add(percentShift))
		if candidate.GreaterThan(old) {
			return nil
		}
		if candidate.LessThan(sig.PriceOpen) {
			candidate = sig.PriceOpen
		}
	}

	sig.TrailingStopLoss = &candidate
	return nil
}

// TrailingTake adjusts the trailing take-profit distance. It only moves
// further in the favorable direction (a same-sign shortening back toward
// entry is rejected as a no-op), and refuses to move the TP to a level
// currentPrice has already crossed.
func (c *StrategyCore) TrailingTake(percentShift, currentPrice decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return fmt.Errorf("%w: trailingTake requested with no pending signal", errs.ErrLogicInvariant)
	}
	sig := c.pending
	old := sig.EffectiveTakeProfit()
	one := decimal.NewFromInt(1)

	var candidate decimal.Decimal
	if sig.Direction == types.Long {
		candidate = currentPrice.Mul(one.Add(percentShift))
		if candidate.LessThan(old) || candidate.LessThanOrEqual(currentPrice) {
			return nil
		}
	} else {
		candidate = currentPrice.Mul(one.Sub(percentShift))
		if candidate.GreaterThan(old) || candidate.GreaterThanOrEqual(currentPrice) {
			return nil
		}
	}

	sig.TrailingTakeProfit = &candidate
	return nil
}

// Breakeven force-runs the breakeven arm with the given price, returning
// whether it armed (it is idempotent: a second call is always a no-op).
func (c *StrategyCore) Breakeven(currentPrice decimal.Decimal, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return false, fmt.Errorf("%w: breakeven requested with no pending signal", errs.ErrLogicInvariant)
	}
	return c.breakevens.ForceArm(c.pending, currentPrice, now), nil
}
