package events

import (
	"time"

	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// Action discriminates the six SignalEvent (tick result) variants.
type Action string

const (
	ActionIdle      Action = "idle"
	ActionScheduled Action = "scheduled"
	ActionOpened    Action = "opened"
	ActionActive    Action = "active"
	ActionClosed    Action = "closed"
	ActionCancelled Action = "cancelled"
)

// PnL is the closed-signal profit/loss breakdown.
type PnL struct {
	PnLPercentage   decimal.Decimal
	EffectiveEntry  decimal.Decimal
	EffectiveExit   decimal.Decimal
}

// SignalEvent is the lifecycle event carried on signal-backtest/
// signal-live/signal-any.
type SignalEvent struct {
	Action       Action
	Symbol       string
	StrategyName string
	ExchangeName string
	FrameName    string
	CurrentPrice decimal.Decimal
	BacktestFlag bool

	Signal *types.Signal // nil for idle

	PercentTp *decimal.Decimal // active only
	PercentSl *decimal.Decimal // active only

	CloseReason    types.CloseReason // closed only
	CloseTimestamp time.Time         // closed only
	PnL            *PnL              // closed only

	CancelReason types.CancelReason // cancelled only
	CancelID     *string            // cancelled only
}

// BreakevenEvent is published when BreakevenTracker arms.
type BreakevenEvent struct {
	SignalID string
	Symbol   string
	Price    decimal.Decimal
	At       time.Time
}

// PartialEvent is published when PartialTracker crosses a band.
type PartialEvent struct {
	SignalID string
	Symbol   string
	Kind     types.PartialKind
	Percent  decimal.Decimal
	Price    decimal.Decimal
	At       time.Time
}

// RiskRejectEvent is published when RiskGate rejects a proposal.
type RiskRejectEvent struct {
	Symbol            string
	StrategyName      string
	Note              string
	ActivePositionCnt int
	At                time.Time
}

// ErrorEvent carries a human-readable error message.
type ErrorEvent struct {
	Message string
	Err     error
	At      time.Time
}

// ProgressEvent reports (processed/total) for a WalkerDriver sweep.
type ProgressEvent struct {
	WalkerName string
	Processed  int
	Total      int
}

// WalkerCompleteEvent carries the ranked outcome of a walker sweep.
type WalkerCompleteEvent struct {
	WalkerName   string
	BestStrategy string
	BestMetric   *decimal.Decimal
	Results      []WalkerResult
}

// WalkerResult is one strategy's outcome within a walker sweep.
type WalkerResult struct {
	StrategyName string
	Metric       *decimal.Decimal
}

// DoneEvent marks a driver (backtest/live) finishing its run.
type DoneEvent struct {
	Symbol       string
	StrategyName string
	At           time.Time
}

// PingEvent is the payload shape for the Ping channel. No component in
// this module publishes on Ping.
type PingEvent struct {
	SignalID string
	Symbol   string
	At       time.Time
}
