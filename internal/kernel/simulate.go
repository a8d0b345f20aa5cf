package kernel

import (
	"fmt"

	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/oracle"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
)

// SimulateBacktest is the backtest "fast-forward" path: given a
// contiguous candle slice covering at least the pending signal's
// remaining lifetime, it replays the TP/SL check against a rolling VWAP
// window, returning the first triggering close (or time_expired at the
// end of the slice). Calling this without a pending signal is a bug.
func (c *StrategyCore) SimulateBacktest(candles []types.Candle) (events.SignalEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return events.SignalEvent{}, fmt.Errorf("%w: simulateBacktest requested with no pending signal", errs.ErrLogicInvariant)
	}
	sig := c.pending

	windowSize := c.cfg.AvgPriceCandleCount
	window := make([]types.Candle, 0, windowSize)

	var (
		lastVWAP   = oracle.VWAP(candles)
		lastCandle types.Candle
	)
	if len(candles) > 0 {
		lastCandle = candles[len(candles)-1]
	}

	for _, cd := range candles {
		window = append(window, cd)
		if len(window) > windowSize {
			window = window[1:]
		}
		if len(window) < windowSize {
			continue
		}

		vwap := oracle.VWAP(window)
		lastVWAP = vwap
		lastCandle = cd

		if c.reachedTakeProfit(sig, vwap) {
			return c.closeSignal(sig, vwap, cd.Timestamp, types.CloseTakeProfit), nil
		}
		if c.reachedStopLoss(sig, vwap) {
			return c.closeSignal(sig, vwap, cd.Timestamp, types.CloseStopLoss), nil
		}
	}

	return c.closeSignal(sig, lastVWAP, lastCandle.Timestamp, types.CloseTimeExpired), nil
}
