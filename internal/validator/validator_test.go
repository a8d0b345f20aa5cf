package validator_test

import (
	"strings"
	"testing"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/validator"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
)

func validLongSignal(now time.Time) *types.Signal {
	return &types.Signal{
		Direction:           types.Long,
		Symbol:              "SOL/USDT",
		PriceOpen:           decimal.NewFromInt(100),
		PriceTakeProfit:     decimal.NewFromInt(105),
		PriceStopLoss:       decimal.NewFromInt(95),
		MinuteEstimatedTime: 60,
		ScheduledAt:         now,
		PendingAt:           now,
	}
}

func TestValidatePassesOnWellFormedLongSignal(t *testing.T) {
	now := time.Now()
	if err := validator.Validate(validator.Input{Signal: validLongSignal(now), Now: now}, config.Default()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateBadDirection(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	s.Direction = types.Direction("sideways")

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "direction must be long or short")
}

func TestValidateNonPositivePrices(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	s.PriceOpen = decimal.Zero
	s.PriceStopLoss = decimal.NewFromInt(-1)

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "priceOpen must be a finite positive number")
	requireValidationFailure(t, err, "priceStopLoss must be a finite positive number")
}

func TestValidateLongOrderingViolation(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	// take-profit below open breaks the long ordering long before the
	// distance checks would notice.
	s.PriceTakeProfit = decimal.NewFromInt(99)

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "long signal requires priceTakeProfit > priceOpen > priceStopLoss")
}

func TestValidateShortOrderingViolation(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	s.Direction = types.Short
	s.PriceTakeProfit = decimal.NewFromInt(95)
	s.PriceStopLoss = decimal.NewFromInt(105)
	// valid short ordering requires tp < open < sl; swap tp/sl to break it
	s.PriceTakeProfit, s.PriceStopLoss = s.PriceStopLoss, s.PriceTakeProfit

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "short signal requires priceTakeProfit < priceOpen < priceStopLoss")
}

func TestValidateTakeProfitTooClose(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	// 0.1% away, below the 0.3% default minimum.
	s.PriceTakeProfit = decimal.NewFromFloat(100.1)

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "take-profit distance")
}

func TestValidateStopLossTooFar(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	// 50% away, above the 20% default maximum.
	s.PriceStopLoss = decimal.NewFromInt(50)

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "stop-loss distance")
}

func TestValidateLifetimeOutOfRange(t *testing.T) {
	now := time.Now()
	cfg := config.Default()

	zero := validLongSignal(now)
	zero.MinuteEstimatedTime = 0
	requireValidationFailure(t, validator.Validate(validator.Input{Signal: zero, Now: now}, cfg), "minuteEstimatedTime must be in")

	tooLong := validLongSignal(now)
	tooLong.MinuteEstimatedTime = cfg.MaxSignalLifetimeMinutes + 1
	requireValidationFailure(t, validator.Validate(validator.Input{Signal: tooLong, Now: now}, cfg), "minuteEstimatedTime must be in")
}

func TestValidateZeroTimestamps(t *testing.T) {
	now := time.Now()
	s := validLongSignal(now)
	s.ScheduledAt = time.Time{}
	s.PendingAt = time.Time{}

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	requireValidationFailure(t, err, "scheduledAt must be a positive wall time")
	requireValidationFailure(t, err, "pendingAt must be a positive wall time")
}

func TestValidateAccumulatesAllFailures(t *testing.T) {
	now := time.Now()
	s := &types.Signal{
		Direction:           types.Direction("invalid"),
		PriceOpen:           decimal.Zero,
		PriceTakeProfit:     decimal.Zero,
		PriceStopLoss:       decimal.Zero,
		MinuteEstimatedTime: 0,
	}

	err := validator.Validate(validator.Input{Signal: s, Now: now}, config.Default())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !validator.IsValidationError(err) {
		t.Fatalf("expected IsValidationError to report true, err=%v", err)
	}

	for _, want := range []string{
		"direction must be long or short",
		"priceOpen must be a finite positive number",
		"priceTakeProfit must be a finite positive number",
		"priceStopLoss must be a finite positive number",
		"minuteEstimatedTime must be in",
		"scheduledAt must be a positive wall time",
		"pendingAt must be a positive wall time",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected combined error to contain %q, got %q", want, err.Error())
		}
	}

	// Ordering ("long/short requires...") and distance checks only apply
	// once prices are sane, so they must not appear here.
	if strings.Contains(err.Error(), "requires priceTakeProfit") {
		t.Errorf("ordering check should not fire when prices are non-positive, got %q", err.Error())
	}
}

func TestIsValidationErrorFalseForOtherErrors(t *testing.T) {
	if validator.IsValidationError(nil) {
		t.Error("nil should not be a validation error")
	}
}

func requireValidationFailure(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation failure containing %q, got nil", substr)
	}
	if !validator.IsValidationError(err) {
		t.Fatalf("expected IsValidationError to report true, err=%v", err)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("expected error to contain %q, got %q", substr, err.Error())
	}
}
