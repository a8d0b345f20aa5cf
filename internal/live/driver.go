// Package live implements LiveDriver: an infinite loop using wall-clock
// time as the execution moment, with graceful and hard stop modes.
package live

import (
	"context"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/kernel"
	"go.uber.org/zap"
)

// Driver runs one StrategyCore session on a wall-clock tick loop.
type Driver struct {
	logger  *zap.Logger
	core    *kernel.StrategyCore
	bus     *events.Bus
	tickTTL time.Duration

	graceful bool
	stopCh   chan struct{}
}

// New creates a Driver ticking core every tickTTL.
func New(logger *zap.Logger, core *kernel.StrategyCore, bus *events.Bus, tickTTL time.Duration) *Driver {
	if tickTTL <= 0 {
		tickTTL = time.Second
	}
	return &Driver{logger: logger, core: core, bus: bus, tickTTL: tickTTL, stopCh: make(chan struct{})}
}

// Run ticks core on wall-clock time until stopped or ctx is cancelled. It
// rehydrates pending/scheduled state from PositionStore before the first
// tick.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.core.Rehydrate(); err != nil {
		return err
	}

	ticker := time.NewTicker(d.tickTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stopCh:
			if d.graceful {
				d.drain(ctx)
			}
			if d.bus != nil {
				d.bus.Publish(events.Event{Channel: events.DoneLive, Payload: events.DoneEvent{At: time.Now()}})
			}
			return nil
		case <-ticker.C:
			now := time.Now()
			if _, err := d.core.Tick(ctx, now); err != nil {
				d.logger.Error("live tick failed", zap.Error(err))
				return err
			}
		}
	}
}

// drain keeps ticking until the session has no pending/scheduled signal
// left, i.e. the last lifecycle event was closed/cancelled or there was
// never one to begin with. Bounded by the driver's own tickTTL cadence;
// the caller's ctx still governs an outer deadline if one is set.
func (d *Driver) drain(ctx context.Context) {
	for !d.core.Idle() {
		now := time.Now()
		if _, err := d.core.Tick(ctx, now); err != nil {
			d.logger.Error("live drain tick failed", zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.tickTTL):
		}
	}
}

// Stop requests a graceful stop: the driver keeps ticking until the
// current pending/scheduled signal reaches natural closure, then exits.
func (d *Driver) Stop() {
	d.graceful = true
	close(d.stopCh)
}

// HardStop requests an immediate stop: the driver exits on its next loop
// iteration without draining.
func (d *Driver) HardStop() {
	d.graceful = false
	close(d.stopCh)
}
