// Package oracle implements PriceOracle: VWAP reference pricing derived
// from ExchangeProvider candles, with a fixed-delay retry fetch policy
// and a hard refusal to read future candles in live mode.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/internal/exchange"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Oracle derives VWAP reference prices and mediates all candle fetches
// through a retrying ExchangeProvider call.
type Oracle struct {
	logger   *zap.Logger
	provider exchange.Provider
	cfg      config.GlobalConfig

	// live reports whether the oracle is running under a live clock; if
	// true, candlesAfter refuses any window extending past wall-clock
	// now, which is the only mechanism preventing look-ahead bias.
	live bool
}

// New creates an Oracle. live selects the future-peek refusal behaviour.
func New(logger *zap.Logger, provider exchange.Provider, cfg config.GlobalConfig, live bool) *Oracle {
	return &Oracle{logger: logger, provider: provider, cfg: cfg, live: live}
}

// fetch wraps provider.GetCandles with the configured retry policy.
func (o *Oracle) fetch(ctx context.Context, symbol string, interval types.Interval, since time.Time, limit int) ([]types.Candle, error) {
	var lastErr error
	attempts := o.cfg.CandleRetryCount
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		candles, err := o.provider.GetCandles(ctx, symbol, interval, since, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		o.logger.Warn("candle fetch failed, retrying",
			zap.String("symbol", symbol), zap.Int("attempt", i+1), zap.Error(err))
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.cfg.CandleRetryDelay()):
			}
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", errs.ErrTransientFetch, symbol, attempts, lastErr)
}

// CandlesBefore returns the count most recent candles whose timestamp
// <= now.
func (o *Oracle) CandlesBefore(ctx context.Context, symbol string, interval types.Interval, count int, now time.Time) ([]types.Candle, error) {
	since := now.Add(-time.Duration(count) * interval.Duration())
	candles, err := o.fetch(ctx, symbol, interval, since, count*2)
	if err != nil {
		return nil, err
	}
	out := make([]types.Candle, 0, count)
	for _, c := range candles {
		if c.Timestamp.After(now) {
			break
		}
		out = append(out, c)
	}
	if len(out) > count {
		out = out[len(out)-count:]
	}
	if len(out) < count {
		o.logger.Warn("fewer candles than requested", zap.String("symbol", symbol), zap.Int("want", count), zap.Int("got", len(out)))
	}
	return out, nil
}

// CandlesAfter returns up to count future candles starting at now. In
// live mode, if the requested window would extend past real wall-clock
// now, it returns an empty list rather than fabricate future data.
func (o *Oracle) CandlesAfter(ctx context.Context, symbol string, interval types.Interval, count int, now time.Time) ([]types.Candle, error) {
	if o.live {
		windowEnd := now.Add(time.Duration(count) * interval.Duration())
		if windowEnd.After(time.Now()) {
			return nil, nil
		}
	}
	return o.fetch(ctx, symbol, interval, now, count)
}

// AveragePrice returns the VWAP over the last avgPriceCandleCount 1-minute
// candles ending at now. Falls back to the arithmetic mean of close when
// total volume is zero.
func (o *Oracle) AveragePrice(ctx context.Context, symbol string, now time.Time) (decimal.Decimal, error) {
	candles, err := o.CandlesBefore(ctx, symbol, types.Interval1m, o.cfg.AvgPriceCandleCount, now)
	if err != nil {
		return decimal.Zero, err
	}
	return VWAP(candles), nil
}

// VWAP computes the volume-weighted average price over candles:
// typical = (high+low+close)/3, VWAP = Σ(typical*volume)/Σ(volume),
// falling back to the arithmetic mean of close if Σ(volume) = 0.
func VWAP(candles []types.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}

	three := decimal.NewFromInt(3)
	totalVolume := decimal.Zero
	weighted := decimal.Zero
	closeSum := decimal.Zero

	for _, c := range candles {
		typical := c.High.Add(c.Low).Add(c.Close).Div(three)
		weighted = weighted.Add(typical.Mul(c.Volume))
		totalVolume = totalVolume.Add(c.Volume)
		closeSum = closeSum.Add(c.Close)
	}

	if totalVolume.IsZero() {
		return closeSum.Div(decimal.NewFromInt(int64(len(candles))))
	}
	return weighted.Div(totalVolume)
}
