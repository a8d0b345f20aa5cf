package live_test

import (
	"context"
	"testing"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/breakeven"
	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/kernel"
	"github.com/atlas-desktop/strategy-kernel/internal/live"
	"github.com/atlas-desktop/strategy-kernel/internal/oracle"
	"github.com/atlas-desktop/strategy-kernel/internal/partial"
	"github.com/atlas-desktop/strategy-kernel/internal/risk"
	"github.com/atlas-desktop/strategy-kernel/internal/store"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type flatProvider struct{ price decimal.Decimal }

func (f *flatProvider) GetCandles(ctx context.Context, symbol string, interval types.Interval, since time.Time, limit int) ([]types.Candle, error) {
	out := make([]types.Candle, 0, limit)
	step := interval.Duration()
	for i := 0; i < limit; i++ {
		out = append(out, types.Candle{
			Timestamp: since.Add(time.Duration(i) * step),
			Open:      f.price, High: f.price, Low: f.price, Close: f.price,
			Volume: decimal.NewFromInt(1),
		})
	}
	return out, nil
}
func (f *flatProvider) FormatPrice(symbol string, price float64) string  { return "" }
func (f *flatProvider) FormatQuantity(symbol string, qty float64) string { return "" }

func newLiveHarness(t *testing.T, st store.Store) (*kernel.StrategyCore, *events.Bus) {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Default()
	bus := events.New(logger, 32)
	provider := &flatProvider{price: decimal.NewFromInt(100)}
	or := oracle.New(logger, provider, cfg, true)
	gate := risk.New(logger, bus, types.RiskProfile{Name: "default", MaxConcurrentPositions: 5})

	gen := kernel.GeneratorFunc(func(ctx context.Context, symbol string, now time.Time) (*types.Proposal, error) {
		return nil, nil // no signals generated; tests drive state via the store directly
	})

	deps := kernel.Deps{
		Logger: logger, Bus: bus, Oracle: or, Gate: gate,
		Store: st, Partials: partial.New(bus), Breakevens: breakeven.New(bus),
		Generator: gen, Config: cfg,
	}
	routing := kernel.RoutingContext{StrategyName: "momentum", ExchangeName: "file", FrameName: "live"}
	core := kernel.New(deps, routing, "SOL/USDT", kernel.Live, time.Hour)
	return core, bus
}

func TestRunExitsOnContextCancellation(t *testing.T) {
	core, bus := newLiveHarness(t, store.NewMemoryStore())
	driver := live.New(zap.NewNop(), core, bus, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Run to return ctx.Err() on cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

func TestHardStopExitsImmediatelyAndPublishesDoneLive(t *testing.T) {
	core, bus := newLiveHarness(t, store.NewMemoryStore())
	driver := live.New(zap.NewNop(), core, bus, 5*time.Millisecond)

	doneCh := make(chan events.DoneEvent, 1)
	bus.Subscribe(events.DoneLive, func(ev events.Event) {
		doneCh <- ev.Payload.(events.DoneEvent)
	})

	runDone := make(chan error, 1)
	go func() { runDone <- driver.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	driver.HardStop()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("expected Run to return nil on HardStop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after HardStop")
	}

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("expected a DoneLive event after HardStop")
	}
}

func TestStopDrainsPendingSignalBeforeExiting(t *testing.T) {
	st := store.NewMemoryStore()
	key := store.Key{StrategyName: "momentum", Symbol: "SOL/USDT"}

	// Pre-populate an already-expired pending signal so the first drain
	// tick closes it immediately.
	pending := &types.Signal{
		ID:                  "sig-1",
		Symbol:              "SOL/USDT",
		StrategyName:        "momentum",
		Direction:           types.Long,
		PriceOpen:           decimal.NewFromInt(100),
		PriceTakeProfit:     decimal.NewFromInt(200),
		PriceStopLoss:       decimal.NewFromInt(1),
		MinuteEstimatedTime: 1,
		PendingAt:           time.Now().Add(-time.Hour),
	}
	if err := st.WritePending(key, pending); err != nil {
		t.Fatalf("failed to seed pending signal: %v", err)
	}

	core, bus := newLiveHarness(t, st)
	driver := live.New(zap.NewNop(), core, bus, 5*time.Millisecond)

	closedCh := make(chan struct{}, 1)
	bus.Subscribe(events.SignalLive, func(ev events.Event) {
		if sev, ok := ev.Payload.(events.SignalEvent); ok && sev.Action == events.ActionClosed {
			select {
			case closedCh <- struct{}{}:
			default:
			}
		}
	})

	runDone := make(chan error, 1)
	go func() { runDone <- driver.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	driver.Stop()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("expected Run to return nil after a graceful drain, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after graceful Stop")
	}

	select {
	case <-closedCh:
	default:
		t.Fatal("expected the pending signal to have been closed during drain")
	}

	if !core.Idle() {
		t.Fatal("expected the session to be idle after a graceful drain")
	}
}
