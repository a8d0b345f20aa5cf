// Package validator implements SignalValidator: a pure synchronous
// function validating a proposed signal against structural, directional,
// distance and lifetime constraints.
//
// Every check runs regardless of earlier failures, so a caller sees the
// full set of violations in one pass instead of fixing them one at a
// time.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/errs"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

// Input augments a proposed signal with the ambient data the validator
// needs but a bare types.Signal doesn't carry in isolation.
type Input struct {
	Signal *types.Signal
	Now    time.Time
}

// Validate runs every rule against in, returning nil if all pass or a
// single error concatenating every failure message otherwise.
func Validate(in Input, cfg config.GlobalConfig) error {
	var failures []string

	s := in.Signal

	if s.Direction != types.Long && s.Direction != types.Short {
		failures = append(failures, fmt.Sprintf("direction must be long or short, got %q", s.Direction))
	}

	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"priceOpen", s.PriceOpen},
		{"priceTakeProfit", s.PriceTakeProfit},
		{"priceStopLoss", s.PriceStopLoss},
	} {
		if !f.v.IsPositive() {
			failures = append(failures, fmt.Sprintf("%s must be a finite positive number, got %s", f.name, f.v.String()))
		}
	}

	// Directional ordering, only meaningful once prices are sane.
	if s.PriceOpen.IsPositive() && s.PriceTakeProfit.IsPositive() && s.PriceStopLoss.IsPositive() {
		switch s.Direction {
		case types.Long:
			if !(s.PriceTakeProfit.GreaterThan(s.PriceOpen) && s.PriceOpen.GreaterThan(s.PriceStopLoss)) {
				failures = append(failures, "long signal requires priceTakeProfit > priceOpen > priceStopLoss")
			}
		case types.Short:
			if !(s.PriceTakeProfit.LessThan(s.PriceOpen) && s.PriceOpen.LessThan(s.PriceStopLoss)) {
				failures = append(failures, "short signal requires priceTakeProfit < priceOpen < priceStopLoss")
			}
		}

		tpDist := s.PriceTakeProfit.Sub(s.PriceOpen).Abs().Div(s.PriceOpen)
		if tpDist.LessThan(cfg.MinTPDistance) {
			failures = append(failures, fmt.Sprintf("take-profit distance %s below minimum %s", tpDist.String(), cfg.MinTPDistance.String()))
		}

		slDist := s.PriceStopLoss.Sub(s.PriceOpen).Abs().Div(s.PriceOpen)
		if slDist.GreaterThan(cfg.MaxSLDistance) {
			failures = append(failures, fmt.Sprintf("stop-loss distance %s above maximum %s", slDist.String(), cfg.MaxSLDistance.String()))
		}
	}

	if s.MinuteEstimatedTime <= 0 || s.MinuteEstimatedTime > cfg.MaxSignalLifetimeMinutes {
		failures = append(failures, fmt.Sprintf("minuteEstimatedTime must be in (0, %d], got %d", cfg.MaxSignalLifetimeMinutes, s.MinuteEstimatedTime))
	}

	if s.ScheduledAt.IsZero() || s.ScheduledAt.UnixMilli() <= 0 {
		failures = append(failures, "scheduledAt must be a positive wall time")
	}
	if s.PendingAt.IsZero() || s.PendingAt.UnixMilli() <= 0 {
		failures = append(failures, "pendingAt must be a positive wall time")
	}

	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", errs.ErrValidation, strings.Join(failures, "; "))
}

// IsValidationError reports whether err originated from Validate.
func IsValidationError(err error) bool {
	return errors.Is(err, errs.ErrValidation)
}
