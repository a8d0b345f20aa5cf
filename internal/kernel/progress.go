package kernel

import (
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// progressPercent returns 100 * traveled/total clamped to [0, 100], with
// 0 when the move is adverse (traveled has the wrong sign or total is
// zero). Used for both percentTp (toward the effective TP) and percentSl
// (toward the effective SL).
func progressPercent(total, traveled decimal.Decimal) decimal.Decimal {
	if total.IsZero() || traveled.Sign() <= 0 {
		return decimal.Zero
	}
	pct := traveled.Div(total).Mul(decimal.NewFromInt(100))
	hundred := decimal.NewFromInt(100)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// ProgressPercentages computes (percentTp, percentSl) for sig at
// currentPrice. Purely informational; does not affect transitions.
func ProgressPercentages(sig *types.Signal, currentPrice decimal.Decimal) (percentTp, percentSl decimal.Decimal) {
	entry := sig.PriceOpen
	tp := sig.EffectiveTakeProfit()
	sl := sig.EffectiveStopLoss()

	if sig.Direction == types.Long {
		percentTp = progressPercent(tp.Sub(entry), currentPrice.Sub(entry))
		percentSl = progressPercent(entry.Sub(sl), entry.Sub(currentPrice))
	} else {
		percentTp = progressPercent(entry.Sub(tp), entry.Sub(currentPrice))
		percentSl = progressPercent(sl.Sub(entry), currentPrice.Sub(entry))
	}
	return percentTp, percentSl
}
