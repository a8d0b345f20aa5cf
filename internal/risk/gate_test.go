package risk_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/risk"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"go.uber.org/zap"
)

func proposal(symbol, strategy string) *types.Signal {
	return &types.Signal{Symbol: symbol, StrategyName: strategy, Direction: types.Long}
}

func TestGateAllowsUnderLimit(t *testing.T) {
	g := risk.New(zap.NewNop(), nil, types.RiskProfile{Name: "default", MaxConcurrentPositions: 2})

	if err := g.CheckSignal(proposal("SOL/USDT", "momentum")); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestGateRejectsAtMaxConcurrentPositions(t *testing.T) {
	g := risk.New(zap.NewNop(), nil, types.RiskProfile{Name: "default", MaxConcurrentPositions: 1})

	g.AddSignal("SOL/USDT", "momentum")
	if got := g.OpenCount(); got != 1 {
		t.Fatalf("expected open count 1, got %d", got)
	}

	err := g.CheckSignal(proposal("ETH/USDT", "momentum"))
	if err == nil {
		t.Fatal("expected rejection at max concurrent positions")
	}
	if !errors.Is(err, errs.ErrRiskRejected) {
		t.Errorf("expected errs.ErrRiskRejected, got %v", err)
	}
}

func TestGateUnlimitedWhenMaxIsZero(t *testing.T) {
	g := risk.New(zap.NewNop(), nil, types.RiskProfile{Name: "default", MaxConcurrentPositions: 0})

	for i := 0; i < 10; i++ {
		g.AddSignal(fmt.Sprintf("SYM%d/USDT", i), "momentum")
	}
	if err := g.CheckSignal(proposal("SYM10/USDT", "momentum")); err != nil {
		t.Fatalf("expected allow with unlimited profile, got %v", err)
	}
}

func TestGateFirstFailingValidationWins(t *testing.T) {
	var calledA, calledB bool

	profile := types.RiskProfile{
		Name: "ordered",
		Validations: []types.Validation{
			{
				Note: "always rejects",
				Check: func(p *types.Signal, count int, active []types.PositionKey) error {
					calledA = true
					return fmt.Errorf("rule A rejects")
				},
			},
			{
				Note: "never reached",
				Check: func(p *types.Signal, count int, active []types.PositionKey) error {
					calledB = true
					return fmt.Errorf("rule B rejects")
				},
			},
		},
	}
	g := risk.New(zap.NewNop(), nil, profile)

	err := g.CheckSignal(proposal("SOL/USDT", "momentum"))
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !calledA {
		t.Error("expected rule A to run")
	}
	if calledB {
		t.Error("rule B should not run once rule A rejected")
	}
	if got := err.Error(); got == "" || !errors.Is(err, errs.ErrRiskRejected) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGateAddRemoveSignal(t *testing.T) {
	g := risk.New(zap.NewNop(), nil, types.RiskProfile{Name: "default"})

	g.AddSignal("SOL/USDT", "momentum")
	g.AddSignal("ETH/USDT", "momentum")
	if got := g.OpenCount(); got != 2 {
		t.Fatalf("expected 2 open, got %d", got)
	}

	g.RemoveSignal("SOL/USDT", "momentum")
	if got := g.OpenCount(); got != 1 {
		t.Fatalf("expected 1 open after remove, got %d", got)
	}

	// Removing something already absent is a no-op, not a panic.
	g.RemoveSignal("SOL/USDT", "momentum")
	if got := g.OpenCount(); got != 1 {
		t.Fatalf("expected 1 open after redundant remove, got %d", got)
	}
}

func TestGatePublishesRiskRejectEvent(t *testing.T) {
	bus := events.New(zap.NewNop(), 4)
	received := make(chan events.RiskRejectEvent, 1)
	bus.Subscribe(events.RiskReject, func(ev events.Event) {
		if r, ok := ev.Payload.(events.RiskRejectEvent); ok {
			received <- r
		}
	})

	g := risk.New(zap.NewNop(), bus, types.RiskProfile{Name: "default", MaxConcurrentPositions: 0,
		Validations: []types.Validation{{
			Note: "reject everything",
			Check: func(p *types.Signal, count int, active []types.PositionKey) error {
				return fmt.Errorf("not allowed")
			},
		}},
	})

	if err := g.CheckSignal(proposal("SOL/USDT", "momentum")); err == nil {
		t.Fatal("expected rejection")
	}

	select {
	case r := <-received:
		if r.Symbol != "SOL/USDT" || r.StrategyName != "momentum" {
			t.Errorf("unexpected risk-reject payload: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for risk-reject event")
	}
}
