package kernel_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/kernel"
)

func newBareCore(strategyName, symbol string, mode kernel.Mode) *kernel.StrategyCore {
	routing := kernel.RoutingContext{StrategyName: strategyName, ExchangeName: "file", FrameName: "live"}
	return kernel.New(kernel.Deps{}, routing, symbol, mode, time.Second)
}

func TestGetOrCreateReturnsSameInstanceForSameKey(t *testing.T) {
	reg := kernel.NewRegistry()
	calls := 0
	makeFn := func() *kernel.StrategyCore {
		calls++
		return newBareCore("momentum", "SOL/USDT", kernel.Live)
	}

	first := reg.GetOrCreate("momentum", "SOL/USDT", kernel.Live, makeFn)
	second := reg.GetOrCreate("momentum", "SOL/USDT", kernel.Live, makeFn)

	if first != second {
		t.Fatal("expected the same session instance for an identical key")
	}
	if calls != 1 {
		t.Fatalf("expected makeFn invoked exactly once, got %d", calls)
	}
}

func TestGetOrCreateDistinguishesByMode(t *testing.T) {
	reg := kernel.NewRegistry()

	live := reg.GetOrCreate("momentum", "SOL/USDT", kernel.Live, func() *kernel.StrategyCore {
		return newBareCore("momentum", "SOL/USDT", kernel.Live)
	})
	backtest := reg.GetOrCreate("momentum", "SOL/USDT", kernel.Backtest, func() *kernel.StrategyCore {
		return newBareCore("momentum", "SOL/USDT", kernel.Backtest)
	})

	if live == backtest {
		t.Fatal("expected live and backtest sessions for the same (strategy, symbol) to be distinct")
	}
}

func TestAllReturnsEveryRegisteredSession(t *testing.T) {
	reg := kernel.NewRegistry()
	reg.GetOrCreate("momentum", "SOL/USDT", kernel.Live, func() *kernel.StrategyCore {
		return newBareCore("momentum", "SOL/USDT", kernel.Live)
	})
	reg.GetOrCreate("mean_reversion", "ETH/USDT", kernel.Live, func() *kernel.StrategyCore {
		return newBareCore("mean_reversion", "ETH/USDT", kernel.Live)
	})

	all := reg.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 registered sessions, got %d", len(all))
	}
}
