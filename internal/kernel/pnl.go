package kernel

import (
	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// effectivePrices returns the effective entry/exit prices for one leg of
// a close at closePrice: for a long position the effective entry is
// priceOpen*(1+slippage) and the effective exit is closePrice*(1-slippage);
// for short the roles invert.
func effectivePrices(sig *types.Signal, closePrice decimal.Decimal, cfg config.GlobalConfig) (entry, exit decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if sig.Direction == types.Long {
		return sig.PriceOpen.Mul(one.Add(cfg.SlippagePercent)), closePrice.Mul(one.Sub(cfg.SlippagePercent))
	}
	return sig.PriceOpen.Mul(one.Sub(cfg.SlippagePercent)), closePrice.Mul(one.Add(cfg.SlippagePercent))
}

// legPnLPercent returns the fee-adjusted percentage return for one leg
// of the position closed at closePrice.
func legPnLPercent(sig *types.Signal, closePrice decimal.Decimal, cfg config.GlobalConfig) decimal.Decimal {
	entry, exit := effectivePrices(sig, closePrice, cfg)

	var gross decimal.Decimal
	if sig.Direction == types.Long {
		gross = exit.Sub(entry).Div(entry)
	} else {
		gross = entry.Sub(exit).Div(entry)
	}

	hundred := decimal.NewFromInt(100)
	grossPct := gross.Mul(hundred)
	fees := cfg.FeePercent.Mul(decimal.NewFromInt(2)).Mul(hundred)
	return grossPct.Sub(fees)
}

// ClosePnL computes the final, partial-weighted PnL for sig closing at
// finalPrice: each executed partial contributes its own leg PnL weighted
// by its percent, and the remaining (unclosed) percent contributes the
// leg PnL at finalPrice. Percentages across the lifecycle sum to 100.
func ClosePnL(sig *types.Signal, finalPrice decimal.Decimal, cfg config.GlobalConfig) events.PnL {
	hundred := decimal.NewFromInt(100)

	weighted := decimal.Zero
	closedPct := decimal.Zero
	for _, p := range sig.Partials {
		weighted = weighted.Add(p.Percent.Div(hundred).Mul(legPnLPercent(sig, p.Price, cfg)))
		closedPct = closedPct.Add(p.Percent)
	}

	remaining := hundred.Sub(closedPct)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	weighted = weighted.Add(remaining.Div(hundred).Mul(legPnLPercent(sig, finalPrice, cfg)))

	entry, exit := effectivePrices(sig, finalPrice, cfg)
	return events.PnL{
		PnLPercentage:  weighted,
		EffectiveEntry: entry,
		EffectiveExit:  exit,
	}
}
