// Package backtest implements BacktestDriver: a pull-based iterator
// yielding closed/cancelled results by walking a generated timeframe
// array, fast-forwarding past a signal's expected lifetime once it opens.
//
// The driver walks the frame's timestamps and ticks the core session at
// each one, collecting results. There is no general priority event queue: the
// fast-forward model only ever produces one kind of future work (the
// simulated close), not a heterogeneous event mix.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/exchange"
	"github.com/atlas-desktop/strategy-kernel/internal/kernel"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"go.uber.org/zap"
)

// Driver pulls closed/cancelled results from one StrategyCore session
// over one Frame. Next is consumer-driven: the caller decides when to
// ask for the next value, and may stop early at any point.
type Driver struct {
	logger   *zap.Logger
	core     *kernel.StrategyCore
	provider exchange.Provider
	symbol   string
	interval types.Interval

	timestamps []time.Time
	i          int
	done       bool
}

// New creates a Driver walking frame.Timestamps() against core.
func New(logger *zap.Logger, core *kernel.StrategyCore, provider exchange.Provider, symbol string, frame types.Frame) *Driver {
	return &Driver{
		logger:     logger,
		core:       core,
		provider:   provider,
		symbol:     symbol,
		interval:   frame.Interval,
		timestamps: frame.Timestamps(),
	}
}

// Next advances the driver and returns the next yieldable result
// (scheduled/opened-via-fast-forward-closed/cancelled/closed). ok=false
// once the timeframe is exhausted.
func (d *Driver) Next(ctx context.Context) (events.SignalEvent, bool, error) {
	for d.i < len(d.timestamps) {
		t := d.timestamps[d.i]

		res, err := d.core.Tick(ctx, t)
		if err != nil {
			return events.SignalEvent{}, false, err
		}

		switch res.Action {
		case events.ActionOpened:
			closed, err := d.fastForward(ctx, res, t)
			if err != nil {
				return events.SignalEvent{}, false, err
			}
			if closed == nil {
				d.done = true
				return events.SignalEvent{}, false, nil
			}
			d.advancePast(closed.CloseTimestamp)
			return *closed, true, nil

		case events.ActionScheduled, events.ActionCancelled:
			d.i++
			return res, true, nil

		case events.ActionClosed:
			d.advancePast(res.CloseTimestamp)
			return res, true, nil

		default: // idle, active
			d.i++
		}
	}

	return events.SignalEvent{}, false, nil
}

// fastForward requests minuteEstimatedTime future 1-minute candles
// starting at openedAt and replays simulateBacktest against them. A nil
// result (with nil error) means the candle request came back empty and
// the driver must terminate.
func (d *Driver) fastForward(ctx context.Context, opened events.SignalEvent, openedAt time.Time) (*events.SignalEvent, error) {
	if opened.Signal == nil {
		return nil, fmt.Errorf("backtest: opened event carried no signal")
	}
	limit := opened.Signal.MinuteEstimatedTime
	candles, err := d.provider.GetCandles(ctx, d.symbol, types.Interval1m, openedAt, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}

	closed, err := d.core.SimulateBacktest(candles)
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// advancePast skips every remaining timestamp strictly before ts. The
// index landing exactly on ts is left for the next Next() call, which
// will observe no pending/scheduled signal and fall through to
// idle/generate.
func (d *Driver) advancePast(ts time.Time) {
	for d.i < len(d.timestamps) && d.timestamps[d.i].Before(ts) {
		d.i++
	}
}

// Done reports whether the driver has exhausted its timeframe or
// terminated early due to an empty fast-forward candle window.
func (d *Driver) Done() bool {
	return d.done || d.i >= len(d.timestamps)
}
