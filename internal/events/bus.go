// Package events implements the kernel's typed pub/sub bus.
//
// Each subscriber gets its own buffered inbox and a dedicated goroutine
// draining it in FIFO order, so one slow handler never reorders or
// blocks delivery to other subscribers. Publishers block once a
// subscriber's buffer fills, rather than silently dropping events.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Channel names the bus's typed pub/sub topics.
type Channel string

const (
	SignalBacktest    Channel = "signal-backtest"
	SignalLive        Channel = "signal-live"
	SignalAny         Channel = "signal-any"
	DoneBacktest      Channel = "done-backtest"
	DoneLive          Channel = "done-live"
	DoneWalker        Channel = "done-walker"
	ProgressOptimizer Channel = "progress-optimizer"
	ProgressWalker    Channel = "progress-walker"
	WalkerComplete    Channel = "walker-complete"
	Breakeven         Channel = "breakeven"
	PartialProfit     Channel = "partial-profit"
	PartialLoss       Channel = "partial-loss"
	RiskReject        Channel = "risk-reject"
	Error             Channel = "error"
	Ping              Channel = "ping"
)

// Event is a single published message. Payload is one of the typed
// structs in payloads.go, keyed by the publishing Channel.
type Event struct {
	Channel Channel
	Payload any
}

// subscriber serializes delivery to one consumer: a single goroutine
// drains Inbox in FIFO order so no callback for this subscriber begins
// before the previous one returned.
type subscriber struct {
	inbox  chan Event
	handle func(Event)
}

// Bus is the typed pub/sub EventBus. Zero value is not usable; use New.
type Bus struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[Channel][]*subscriber

	bufferSize int
}

// New creates an EventBus. bufferSize bounds each subscriber's pending
// queue; publishers block once a subscriber's buffer is full (no silent
// dropping).
func New(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		logger:     logger,
		subs:       make(map[Channel][]*subscriber),
		bufferSize: bufferSize,
	}
}

// Subscribe registers handle to receive every Event published on ch.
// handle is invoked from a single dedicated goroutine per subscriber, so
// handlers never run concurrently with themselves and see publish order.
// A panic inside handle is recovered and republished to the Error
// channel rather than crashing the bus.
func (b *Bus) Subscribe(ch Channel, handle func(Event)) {
	sub := &subscriber{
		inbox:  make(chan Event, b.bufferSize),
		handle: handle,
	}

	b.mu.Lock()
	b.subs[ch] = append(b.subs[ch], sub)
	b.mu.Unlock()

	go b.drain(ch, sub)
}

func (b *Bus) drain(ch Channel, sub *subscriber) {
	for ev := range sub.inbox {
		b.invoke(ch, sub, ev)
	}
}

func (b *Bus) invoke(ch Channel, sub *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("channel", string(ch)),
				zap.Any("recovered", r))
			b.publishErrorNoBlock(ErrorEvent{Message: "subscriber panic"})
		}
	}()
	sub.handle(ev)
}

// Publish delivers ev to every subscriber of ev.Channel, blocking on any
// subscriber whose buffer is currently full. Publishing to SignalAny is
// the caller's responsibility (StrategyCore publishes to both the
// mode-specific channel and SignalAny explicitly).
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subs[ev.Channel]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.inbox <- ev
	}
}

// publishErrorNoBlock is used internally to report bus-level failures
// (e.g. a subscriber panic) without risking a publish deadlocking inside
// the panic-recovery path itself.
func (b *Bus) publishErrorNoBlock(payload ErrorEvent) {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subs[Error]...)
	b.mu.RUnlock()

	ev := Event{Channel: Error, Payload: payload}
	for _, s := range subs {
		select {
		case s.inbox <- ev:
		default:
		}
	}
}
