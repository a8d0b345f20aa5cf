// Package exchange defines the ExchangeProvider interface (consumed,
// not owned, by the kernel) and a deterministic file-backed reference
// implementation used by tests and the demo CLI path.
package exchange

import (
	"context"
	"time"

	"github.com/atlas-desktop/strategy-kernel/pkg/types"
)

// Provider supplies OHLCV candles and exchange-specific formatting. It
// is the kernel's external market-data collaborator.
type Provider interface {
	// GetCandles returns up to limit candles whose timestamp >= since, in
	// strictly ascending timestamp order.
	GetCandles(ctx context.Context, symbol string, interval types.Interval, since time.Time, limit int) ([]types.Candle, error)

	// FormatPrice/FormatQuantity apply exchange-specific precision;
	// purely presentational.
	FormatPrice(symbol string, price float64) string
	FormatQuantity(symbol string, qty float64) string
}
