package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interval is an exchange candle interval code.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
)

// Duration returns the wall-clock span of one interval.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval1m:
		return time.Minute
	case Interval3m:
		return 3 * time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval2h:
		return 2 * time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval6h:
		return 6 * time.Hour
	case Interval8h:
		return 8 * time.Hour
	default:
		return time.Minute
	}
}

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Valid reports whether the candle satisfies the basic OHLC invariants:
// all fields finite/non-negative, high >= max(open, close),
// low <= min(open, close).
func (c Candle) Valid() bool {
	if c.Open.IsNegative() || c.High.IsNegative() || c.Low.IsNegative() ||
		c.Close.IsNegative() || c.Volume.IsNegative() {
		return false
	}
	maxOC := decimal.Max(c.Open, c.Close)
	minOC := decimal.Min(c.Open, c.Close)
	return !c.High.LessThan(maxOC) && !c.Low.GreaterThan(minOC)
}

// Frame is a backtest timeframe descriptor.
type Frame struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Interval  Interval
}

// Timestamps produces the finite ordered sequence of tick instants for
// this frame, spaced by Interval.
func (f Frame) Timestamps() []time.Time {
	if !f.StartDate.Before(f.EndDate) {
		return nil
	}
	step := f.Interval.Duration()
	var out []time.Time
	for t := f.StartDate; t.Before(f.EndDate); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}
