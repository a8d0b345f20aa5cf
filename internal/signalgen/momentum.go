// Package signalgen provides reference SignalGenerator implementations:
// a momentum-crossover generator and a mean-reversion (Bollinger Band)
// generator. Neither is required by the kernel itself — both exist as
// worked examples a caller can wire directly or copy from.
//
// Both use a lookback-window trigger over recent closes (MeanReversion
// also uses a Newton's-method decimal square root for its standard
// deviation), returning a fixed TP/SL/lifetime Proposal rather than a Side+Strength
// signal.
package signalgen

import (
	"context"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/oracle"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// Momentum generates long/short proposals when the close price has
// moved by more than Threshold over Period 1-minute candles.
type Momentum struct {
	Oracle              *oracle.Oracle
	Period              int
	Threshold           decimal.Decimal
	TakeProfitPercent   decimal.Decimal
	StopLossPercent     decimal.Decimal
	MinuteEstimatedTime int
}

// NewMomentum creates a Momentum generator with standard defaults
// (period 14, threshold 2%), plus fixed 5%/5% TP/SL and a 240-minute
// expected lifetime.
func NewMomentum(o *oracle.Oracle) *Momentum {
	return &Momentum{
		Oracle:              o,
		Period:              14,
		Threshold:           decimal.NewFromFloat(0.02),
		TakeProfitPercent:   decimal.NewFromFloat(0.05),
		StopLossPercent:     decimal.NewFromFloat(0.05),
		MinuteEstimatedTime: 240,
	}
}

// Generate implements kernel.SignalGenerator.
func (m *Momentum) Generate(ctx context.Context, symbol string, now time.Time) (*types.Proposal, error) {
	candles, err := m.Oracle.CandlesBefore(ctx, symbol, types.Interval1m, m.Period+1, now)
	if err != nil {
		return nil, err
	}
	if len(candles) < m.Period+1 {
		return nil, nil
	}

	current := candles[len(candles)-1].Close
	past := candles[len(candles)-1-m.Period].Close
	if past.IsZero() {
		return nil, nil
	}

	momentum := current.Sub(past).Div(past)

	switch {
	case momentum.GreaterThan(m.Threshold):
		return m.proposal(types.Long, current, "strong positive momentum"), nil
	case momentum.LessThan(m.Threshold.Neg()):
		return m.proposal(types.Short, current, "strong negative momentum"), nil
	default:
		return nil, nil
	}
}

func (m *Momentum) proposal(dir types.Direction, entry decimal.Decimal, note string) *types.Proposal {
	one := decimal.NewFromInt(1)
	var tp, sl decimal.Decimal
	if dir == types.Long {
		tp = entry.Mul(one.Add(m.TakeProfitPercent))
		sl = entry.Mul(one.Sub(m.StopLossPercent))
	} else {
		tp = entry.Mul(one.Sub(m.TakeProfitPercent))
		sl = entry.Mul(one.Add(m.StopLossPercent))
	}
	return &types.Proposal{
		Direction:           dir,
		PriceTakeProfit:     tp,
		PriceStopLoss:       sl,
		MinuteEstimatedTime: m.MinuteEstimatedTime,
		Note:                note,
	}
}
