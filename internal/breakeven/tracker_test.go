package breakeven_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/breakeven"
	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func longSignal() *types.Signal {
	return &types.Signal{ID: "sig-1", Symbol: "SOL/USDT", Direction: types.Long, PriceOpen: decimal.NewFromInt(100)}
}

func TestCheckDoesNotArmBelowThreshold(t *testing.T) {
	tr := breakeven.New(nil)
	sig := longSignal()
	threshold := config.Default().BreakevenThreshold() // 0.004

	armed := tr.Check(sig, decimal.NewFromInt(100), threshold, time.Now())
	if armed || sig.BreakevenArmed {
		t.Fatal("expected no arm at zero move")
	}
}

func TestCheckArmsOnceThresholdCrossed(t *testing.T) {
	bus := events.New(zap.NewNop(), 8)
	received := make(chan events.BreakevenEvent, 1)
	bus.Subscribe(events.Breakeven, func(ev events.Event) {
		if b, ok := ev.Payload.(events.BreakevenEvent); ok {
			received <- b
		}
	})

	tr := breakeven.New(bus)
	sig := longSignal()
	threshold := config.Default().BreakevenThreshold()

	armed := tr.Check(sig, decimal.NewFromInt(101), threshold, time.Now())
	if !armed {
		t.Fatal("expected arm at +1% move over a 0.4% threshold")
	}
	if !sig.BreakevenArmed {
		t.Fatal("expected sig.BreakevenArmed set")
	}
	if sig.TrailingStopLoss == nil || !sig.TrailingStopLoss.Equal(sig.PriceOpen) {
		t.Fatalf("expected trailing stop at entry, got %v", sig.TrailingStopLoss)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for breakeven event")
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	tr := breakeven.New(nil)
	sig := longSignal()
	threshold := config.Default().BreakevenThreshold()

	first := tr.Check(sig, decimal.NewFromInt(101), threshold, time.Now())
	second := tr.Check(sig, decimal.NewFromInt(105), threshold, time.Now())
	if !first {
		t.Fatal("expected first call to arm")
	}
	if second {
		t.Fatal("expected second call to be a no-op")
	}
}

func TestForceArmIgnoresThreshold(t *testing.T) {
	tr := breakeven.New(nil)
	sig := longSignal()

	armed := tr.ForceArm(sig, decimal.NewFromInt(100), time.Now())
	if !armed || !sig.BreakevenArmed {
		t.Fatal("expected ForceArm to arm unconditionally")
	}

	// Already armed: further ForceArm/Check calls are no-ops.
	if tr.ForceArm(sig, decimal.NewFromInt(200), time.Now()) {
		t.Fatal("expected ForceArm to be idempotent once armed")
	}
}

func TestForgetClearsArmState(t *testing.T) {
	tr := breakeven.New(nil)
	sig := longSignal()
	threshold := config.Default().BreakevenThreshold()

	tr.Check(sig, decimal.NewFromInt(101), threshold, time.Now())
	tr.Forget(sig.ID)

	// sig.BreakevenArmed itself is a signal-level flag untouched by
	// Forget; reset it to simulate a fresh signal reusing the tracker.
	sig.BreakevenArmed = false
	sig.TrailingStopLoss = nil

	armed := tr.Check(sig, decimal.NewFromInt(101), threshold, time.Now())
	if !armed {
		t.Fatal("expected arm to succeed again after Forget + signal reset")
	}
}
