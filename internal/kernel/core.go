package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/breakeven"
	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/oracle"
	"github.com/atlas-desktop/strategy-kernel/internal/partial"
	"github.com/atlas-desktop/strategy-kernel/internal/risk"
	"github.com/atlas-desktop/strategy-kernel/internal/store"
	"github.com/atlas-desktop/strategy-kernel/internal/validator"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StrategyCore is the per-(strategyName, symbol) state machine. All of
// its public operations run under core.mu, so a single session's tick
// pipeline never runs concurrently with itself — distinct sessions may
// run concurrently.
type StrategyCore struct {
	mu sync.Mutex

	logger  *zap.Logger
	bus     *events.Bus
	oracle  *oracle.Oracle
	gate    *risk.Gate
	posStore store.Store
	partials   *partial.Tracker
	breakevens *breakeven.Tracker
	generator  SignalGenerator
	cfg        config.GlobalConfig

	routing  RoutingContext
	symbol   string
	mode     Mode
	interval time.Duration

	stopped               bool
	lastSignalProposalAt  time.Time
	pending               *types.Signal
	scheduled             *types.Signal
}

// Deps bundles a StrategyCore's collaborators.
type Deps struct {
	Logger     *zap.Logger
	Bus        *events.Bus
	Oracle     *oracle.Oracle
	Gate       *risk.Gate
	Store      store.Store
	Partials   *partial.Tracker
	Breakevens *breakeven.Tracker
	Generator  SignalGenerator
	Config     config.GlobalConfig
}

// New creates a StrategyCore for one (strategy, symbol) pair.
func New(deps Deps, routing RoutingContext, symbol string, mode Mode, proposalInterval time.Duration) *StrategyCore {
	return &StrategyCore{
		logger:     deps.Logger,
		bus:        deps.Bus,
		oracle:     deps.Oracle,
		gate:       deps.Gate,
		posStore:   deps.Store,
		partials:   deps.Partials,
		breakevens: deps.Breakevens,
		generator:  deps.Generator,
		cfg:        deps.Config,
		routing:    routing,
		symbol:     symbol,
		mode:       mode,
		interval:   proposalInterval,
	}
}

func (c *StrategyCore) key() store.Key {
	return store.Key{StrategyName: c.routing.StrategyName, Symbol: c.symbol}
}

func (c *StrategyCore) backtestFlag() bool { return c.mode == Backtest }

// Rehydrate loads pending/scheduled state from the PositionStore. Called
// by LiveDriver before its first tick, so a restarted process resumes
// an in-flight signal instead of losing track of it.
func (c *StrategyCore) Rehydrate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, err := c.posStore.ReadPending(c.key())
	if err != nil {
		return fmt.Errorf("%w: rehydrate pending: %v", errs.ErrPersistence, err)
	}
	scheduled, err := c.posStore.ReadScheduled(c.key())
	if err != nil {
		return fmt.Errorf("%w: rehydrate scheduled: %v", errs.ErrPersistence, err)
	}
	c.pending = pending
	c.scheduled = scheduled
	return nil
}

// Tick runs one pass of the tick algorithm and returns the resulting
// lifecycle event.
func (c *StrategyCore) Tick(ctx context.Context, now time.Time) (events.SignalEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped && c.pending == nil && c.scheduled == nil {
		return c.idleResult(now), nil
	}

	if c.scheduled != nil {
		res, handled, err := c.tickScheduled(ctx, now)
		if err != nil || handled {
			return res, err
		}
		// Still waiting on activation/timeout: nothing else to do this
		// tick, and a new proposal must not be solicited while a signal
		// is already scheduled.
		return c.idleResult(now), nil
	}

	if c.pending != nil {
		return c.tickPending(ctx, now)
	}

	if !c.stopped {
		return c.tickIdleGenerate(ctx, now)
	}

	return c.idleResult(now), nil
}

func (c *StrategyCore) idleResult(now time.Time) events.SignalEvent {
	return events.SignalEvent{
		Action:       events.ActionIdle,
		Symbol:       c.symbol,
		StrategyName: c.routing.StrategyName,
		ExchangeName: c.routing.ExchangeName,
		FrameName:    c.routing.FrameName,
		BacktestFlag: c.backtestFlag(),
	}
}

// tickScheduled handles step 2 of the tick algorithm. handled=true means
// the caller should return res immediately as this tick's result — both
// on cancellation and on activation (the newly-opened signal is still
// returned as "opened" for this tick; subsequent ticks evaluate it via
// tickPending). handled=false means nothing happened this tick (still
// waiting); Tick() then returns an idle result without soliciting a new
// proposal.
func (c *StrategyCore) tickScheduled(ctx context.Context, now time.Time) (events.SignalEvent, bool, error) {
	sig := c.scheduled

	if now.Sub(sig.ScheduledAt) >= c.cfg.ScheduleAwait() {
		return c.cancelScheduled(now, types.CancelTimeout), true, nil
	}

	avg, err := c.oracle.AveragePrice(ctx, c.symbol, now)
	if err != nil {
		c.publishError(fmt.Errorf("%w: %v", errs.ErrTransientFetch, err))
		return events.SignalEvent{}, false, err
	}

	if c.stopLossTouchedBeforeActivation(sig, avg) {
		return c.cancelScheduled(now, types.CancelPriceReject), true, nil
	}

	if c.limitReached(sig, avg) {
		sig.PendingAt = now
		sig.PriceOpenRequested = nil
		c.scheduled = nil
		c.pending = sig
		c.gate.AddSignal(c.symbol, c.routing.StrategyName)

		if err := c.posStore.WriteScheduled(c.key(), nil); err != nil {
			c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
			return events.SignalEvent{}, false, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
		}
		if err := c.posStore.WritePending(c.key(), sig); err != nil {
			c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
			return events.SignalEvent{}, false, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
		}

		ev := events.SignalEvent{
			Action:       events.ActionOpened,
			Symbol:       c.symbol,
			StrategyName: c.routing.StrategyName,
			ExchangeName: c.routing.ExchangeName,
			FrameName:    c.routing.FrameName,
			CurrentPrice: avg,
			BacktestFlag: c.backtestFlag(),
			Signal:       sig,
		}
		c.publish(ev)
		return ev, true, nil
	}

	return events.SignalEvent{}, false, nil
}

func (c *StrategyCore) stopLossTouchedBeforeActivation(sig *types.Signal, avg decimal.Decimal) bool {
	if sig.Direction == types.Long {
		return avg.LessThanOrEqual(sig.PriceStopLoss)
	}
	return avg.GreaterThanOrEqual(sig.PriceStopLoss)
}

func (c *StrategyCore) limitReached(sig *types.Signal, avg decimal.Decimal) bool {
	requested := *sig.PriceOpenRequested
	if sig.Direction == types.Long {
		return avg.LessThanOrEqual(requested)
	}
	return avg.GreaterThanOrEqual(requested)
}

func (c *StrategyCore) cancelScheduled(now time.Time, reason types.CancelReason) events.SignalEvent {
	sig := c.scheduled
	c.scheduled = nil
	if err := c.posStore.WriteScheduled(c.key(), nil); err != nil {
		c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
	}

	ev := events.SignalEvent{
		Action:       events.ActionCancelled,
		Symbol:       c.symbol,
		StrategyName: c.routing.StrategyName,
		ExchangeName: c.routing.ExchangeName,
		FrameName:    c.routing.FrameName,
		BacktestFlag: c.backtestFlag(),
		Signal:       sig,
		CancelReason: reason,
	}
	c.publish(ev)
	return ev
}

// tickPending handles step 3 of the tick algorithm.
func (c *StrategyCore) tickPending(ctx context.Context, now time.Time) (events.SignalEvent, error) {
	sig := c.pending

	avg, err := c.oracle.AveragePrice(ctx, c.symbol, now)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", errs.ErrTransientFetch, err)
		c.publishError(wrapped)
		return events.SignalEvent{}, wrapped
	}

	var closeReason types.CloseReason
	shouldClose := false

	if now.Sub(sig.PendingAt) >= time.Duration(sig.MinuteEstimatedTime)*time.Minute {
		shouldClose, closeReason = true, types.CloseTimeExpired
	} else if c.reachedTakeProfit(sig, avg) {
		shouldClose, closeReason = true, types.CloseTakeProfit
	} else if c.reachedStopLoss(sig, avg) {
		shouldClose, closeReason = true, types.CloseStopLoss
	}

	if shouldClose {
		return c.closeSignal(sig, avg, now, closeReason), nil
	}

	c.partials.Tick(sig, avg, now)
	c.breakevens.Check(sig, avg, c.cfg.BreakevenThreshold(), now)

	percentTp, percentSl := ProgressPercentages(sig, avg)

	ev := events.SignalEvent{
		Action:       events.ActionActive,
		Symbol:       c.symbol,
		StrategyName: c.routing.StrategyName,
		ExchangeName: c.routing.ExchangeName,
		FrameName:    c.routing.FrameName,
		CurrentPrice: avg,
		BacktestFlag: c.backtestFlag(),
		Signal:       sig,
		PercentTp:    &percentTp,
		PercentSl:    &percentSl,
	}
	c.publish(ev)
	return ev, nil
}

func (c *StrategyCore) reachedTakeProfit(sig *types.Signal, avg decimal.Decimal) bool {
	tp := sig.EffectiveTakeProfit()
	if sig.Direction == types.Long {
		return avg.GreaterThanOrEqual(tp)
	}
	return avg.LessThanOrEqual(tp)
}

func (c *StrategyCore) reachedStopLoss(sig *types.Signal, avg decimal.Decimal) bool {
	sl := sig.EffectiveStopLoss()
	if sig.Direction == types.Long {
		return avg.LessThanOrEqual(sl)
	}
	return avg.GreaterThanOrEqual(sl)
}

func (c *StrategyCore) closeSignal(sig *types.Signal, closePrice decimal.Decimal, now time.Time, reason types.CloseReason) events.SignalEvent {
	pnl := ClosePnL(sig, closePrice, c.cfg)

	c.pending = nil
	c.partials.Forget(sig.ID)
	c.breakevens.Forget(sig.ID)
	c.gate.RemoveSignal(c.symbol, c.routing.StrategyName)
	if err := c.posStore.Clear(c.key()); err != nil {
		c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
	}

	ev := events.SignalEvent{
		Action:         events.ActionClosed,
		Symbol:         c.symbol,
		StrategyName:   c.routing.StrategyName,
		ExchangeName:   c.routing.ExchangeName,
		FrameName:      c.routing.FrameName,
		CurrentPrice:   closePrice,
		BacktestFlag:   c.backtestFlag(),
		Signal:         sig,
		CloseReason:    reason,
		CloseTimestamp: now,
		PnL:            &pnl,
	}
	c.publish(ev)
	return ev
}

// tickIdleGenerate handles step 4 of the tick algorithm.
func (c *StrategyCore) tickIdleGenerate(ctx context.Context, now time.Time) (events.SignalEvent, error) {
	if !c.lastSignalProposalAt.IsZero() && now.Sub(c.lastSignalProposalAt) < c.interval {
		return c.idleResult(now), nil
	}

	genCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxSignalGeneration())
	defer cancel()

	proposal, err := c.generator.Generate(genCtx, c.symbol, now)
	if err != nil {
		c.lastSignalProposalAt = now
		wrapped := fmt.Errorf("%w: %v", errs.ErrGeneratorFailure, err)
		c.publishError(wrapped)
		return c.idleResult(now), nil
	}
	if proposal == nil {
		c.lastSignalProposalAt = now
		return c.idleResult(now), nil
	}

	var marketPrice *decimal.Decimal
	if proposal.PriceOpen == nil {
		avg, err := c.oracle.AveragePrice(ctx, c.symbol, now)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", errs.ErrTransientFetch, err)
			c.publishError(wrapped)
			return events.SignalEvent{}, wrapped
		}
		marketPrice = &avg
	}

	sig := c.buildSignal(proposal, now, marketPrice)

	if err := validator.Validate(validator.Input{Signal: sig, Now: now}, c.cfg); err != nil {
		c.lastSignalProposalAt = now
		c.publishError(err)
		return c.idleResult(now), nil
	}

	if err := c.gate.CheckSignal(sig); err != nil {
		c.lastSignalProposalAt = now
		return c.idleResult(now), nil
	}

	if sig.IsScheduled() {
		c.scheduled = sig
		if err := c.posStore.WriteScheduled(c.key(), sig); err != nil {
			c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
		}
		ev := events.SignalEvent{
			Action:       events.ActionScheduled,
			Symbol:       c.symbol,
			StrategyName: c.routing.StrategyName,
			ExchangeName: c.routing.ExchangeName,
			FrameName:    c.routing.FrameName,
			BacktestFlag: c.backtestFlag(),
			Signal:       sig,
		}
		c.publish(ev)
		return ev, nil
	}

	c.pending = sig
	c.gate.AddSignal(c.symbol, c.routing.StrategyName)
	if err := c.posStore.WritePending(c.key(), sig); err != nil {
		c.publishError(fmt.Errorf("%w: %v", errs.ErrPersistence, err))
	}
	ev := events.SignalEvent{
		Action:       events.ActionOpened,
		Symbol:       c.symbol,
		StrategyName: c.routing.StrategyName,
		ExchangeName: c.routing.ExchangeName,
		FrameName:    c.routing.FrameName,
		CurrentPrice: sig.PriceOpen,
		BacktestFlag: c.backtestFlag(),
		Signal:       sig,
	}
	c.publish(ev)
	return ev, nil
}

// buildSignal assembles a Signal from a generator Proposal. When the
// proposal omits PriceOpen, marketPrice (the current VWAP) is used as the
// entry, and the signal opens immediately; otherwise PriceOpenRequested
// is set and the signal is scheduled.
func (c *StrategyCore) buildSignal(p *types.Proposal, now time.Time, marketPrice *decimal.Decimal) *types.Signal {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	sig := &types.Signal{
		ID:                  id,
		Direction:           p.Direction,
		Symbol:              c.symbol,
		StrategyName:        c.routing.StrategyName,
		ExchangeName:        c.routing.ExchangeName,
		FrameName:           c.routing.FrameName,
		Note:                p.Note,
		PriceTakeProfit:     p.PriceTakeProfit,
		PriceStopLoss:       p.PriceStopLoss,
		MinuteEstimatedTime: p.MinuteEstimatedTime,
		ScheduledAt:         now,
		PendingAt:           now,
	}

	if p.PriceOpen != nil {
		sig.PriceOpen = *p.PriceOpen
		reqCopy := *p.PriceOpen
		sig.PriceOpenRequested = &reqCopy
	} else {
		sig.PriceOpen = *marketPrice
	}

	return sig
}

// publish sends ev to the mode-specific channel and to SignalAny.
func (c *StrategyCore) publish(ev events.SignalEvent) {
	if c.bus == nil {
		return
	}
	modeChannel := events.SignalLive
	if c.backtestFlag() {
		modeChannel = events.SignalBacktest
	}
	c.bus.Publish(events.Event{Channel: modeChannel, Payload: ev})
	c.bus.Publish(events.Event{Channel: events.SignalAny, Payload: ev})
}

func (c *StrategyCore) publishError(err error) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Channel: events.Error,
		Payload: events.ErrorEvent{Message: err.Error(), Err: err},
	})
}

// Stop sets the stop flag: no new proposals are solicited on subsequent
// ticks, but existing pending/scheduled signals are still driven to
// natural closure (a drain, not a cancel-on-stop).
func (c *StrategyCore) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

// Stopped reports the stop flag.
func (c *StrategyCore) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Idle reports whether this session currently has neither a pending nor
// scheduled signal, i.e. it has fully drained.
func (c *StrategyCore) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == nil && c.scheduled == nil
}

// Cancel cancels any scheduled signal (does not stop the strategy). If
// cancelID is non-empty, only cancels a scheduled signal matching that ID.
func (c *StrategyCore) Cancel(now time.Time, cancelID string) (events.SignalEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduled == nil {
		return events.SignalEvent{}, false
	}
	if cancelID != "" && c.scheduled.ID != cancelID {
		return events.SignalEvent{}, false
	}

	ev := c.cancelScheduled(now, types.CancelUser)
	if cancelID != "" {
		id := cancelID
		ev.CancelID = &id
	}
	return ev, true
}
