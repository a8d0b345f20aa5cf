package signalgen

import (
	"context"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/oracle"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// MeanReversion generates a proposal back toward the moving average when
// price closes outside Period-window Bollinger Bands, taking profit at
// the average itself.
type MeanReversion struct {
	Oracle              *oracle.Oracle
	Period              int
	StdDevMultiplier    decimal.Decimal
	StopLossPercent     decimal.Decimal
	MinuteEstimatedTime int
}

// NewMeanReversion creates a MeanReversion generator with standard
// Bollinger-style defaults (period 20, 2 standard deviations), plus a
// fixed 3% stop loss and 180-minute expected lifetime.
func NewMeanReversion(o *oracle.Oracle) *MeanReversion {
	return &MeanReversion{
		Oracle:              o,
		Period:              20,
		StdDevMultiplier:    decimal.NewFromFloat(2.0),
		StopLossPercent:     decimal.NewFromFloat(0.03),
		MinuteEstimatedTime: 180,
	}
}

// Generate implements kernel.SignalGenerator.
func (m *MeanReversion) Generate(ctx context.Context, symbol string, now time.Time) (*types.Proposal, error) {
	candles, err := m.Oracle.CandlesBefore(ctx, symbol, types.Interval1m, m.Period, now)
	if err != nil {
		return nil, err
	}
	if len(candles) < m.Period {
		return nil, nil
	}

	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Close)
	}
	sma := sum.Div(decimal.NewFromInt(int64(m.Period)))

	variance := decimal.Zero
	for _, c := range candles {
		diff := c.Close.Sub(sma)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(decimal.NewFromInt(int64(m.Period)))
	stdDev := sqrtDecimal(variance)
	if stdDev.IsZero() {
		return nil, nil
	}

	current := candles[len(candles)-1].Close
	upper := sma.Add(stdDev.Mul(m.StdDevMultiplier))
	lower := sma.Sub(stdDev.Mul(m.StdDevMultiplier))

	one := decimal.NewFromInt(1)
	switch {
	case current.LessThan(lower):
		return &types.Proposal{
			Direction:           types.Long,
			PriceTakeProfit:     sma,
			PriceStopLoss:       current.Mul(one.Sub(m.StopLossPercent)),
			MinuteEstimatedTime: m.MinuteEstimatedTime,
			Note:                "price below lower band",
		}, nil
	case current.GreaterThan(upper):
		return &types.Proposal{
			Direction:           types.Short,
			PriceTakeProfit:     sma,
			PriceStopLoss:       current.Mul(one.Add(m.StopLossPercent)),
			MinuteEstimatedTime: m.MinuteEstimatedTime,
			Note:                "price above upper band",
		}, nil
	default:
		return nil, nil
	}
}

// sqrtDecimal approximates a square root via Newton's method, since
// shopspring/decimal has no native sqrt.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}
	x := d
	two := decimal.NewFromInt(2)
	for i := 0; i < 20; i++ {
		x = x.Add(d.Div(x)).Div(two)
	}
	return x
}
