// Package types holds the value types shared across the strategy kernel:
// signals, candles, frames, risk profiles and walker configuration.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a signal.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// CloseReason identifies why a pending signal closed.
type CloseReason string

const (
	CloseTakeProfit  CloseReason = "take_profit"
	CloseStopLoss    CloseReason = "stop_loss"
	CloseTimeExpired CloseReason = "time_expired"
)

// CancelReason identifies why a scheduled signal was cancelled.
type CancelReason string

const (
	CancelTimeout      CancelReason = "timeout"
	CancelPriceReject  CancelReason = "price_reject"
	CancelUser         CancelReason = "user"
)

// PartialKind distinguishes a profit-band from a loss-band partial event.
type PartialKind string

const (
	PartialProfit PartialKind = "partial-profit"
	PartialLoss   PartialKind = "partial-loss"
)

// Partial is one executed partial close against a signal.
type Partial struct {
	Kind    PartialKind
	Percent decimal.Decimal
	Price   decimal.Decimal
	At      time.Time
}

// Signal is a proposed or active trade intention. Exported fields mirror
// its wire/persistence shape directly, so JSON encoding needs no custom
// marshaling.
type Signal struct {
	ID            string
	Direction     Direction
	Symbol        string
	StrategyName  string
	ExchangeName  string
	FrameName     string
	Note          string

	PriceOpen          decimal.Decimal
	PriceOpenRequested *decimal.Decimal // non-nil => scheduled limit entry
	PriceTakeProfit    decimal.Decimal
	PriceStopLoss      decimal.Decimal

	// Trailing overrides. Nil until the first trailingStop/trailingTake
	// call or breakeven arm.
	TrailingStopLoss   *decimal.Decimal
	TrailingTakeProfit *decimal.Decimal

	MinuteEstimatedTime int

	ScheduledAt time.Time
	PendingAt   time.Time

	Partials []Partial

	BreakevenArmed bool
}

// IsScheduled reports whether the signal is still awaiting activation.
func (s *Signal) IsScheduled() bool {
	return s.PriceOpenRequested != nil
}

// EffectiveTakeProfit returns the trailing take-profit if set, else the
// original.
func (s *Signal) EffectiveTakeProfit() decimal.Decimal {
	if s.TrailingTakeProfit != nil {
		return *s.TrailingTakeProfit
	}
	return s.PriceTakeProfit
}

// EffectiveStopLoss returns the trailing stop-loss if set, else the
// original.
func (s *Signal) EffectiveStopLoss() decimal.Decimal {
	if s.TrailingStopLoss != nil {
		return *s.TrailingStopLoss
	}
	return s.PriceStopLoss
}

// ClosedPercent sums the percent of all executed partial closes, capped
// conceptually at 100 by callers (see internal/partial).
func (s *Signal) ClosedPercent() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Partials {
		total = total.Add(p.Percent)
	}
	return total
}

// Proposal is what a user-supplied SignalGenerator returns. Absence of
// PriceOpen means immediate market entry.
type Proposal struct {
	ID                  string
	Direction           Direction
	PriceOpen           *decimal.Decimal
	PriceTakeProfit     decimal.Decimal
	PriceStopLoss       decimal.Decimal
	MinuteEstimatedTime int
	Note                string
}
