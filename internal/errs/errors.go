// Package errs defines the kernel's error taxonomy: six kinds, checked
// with errors.Is/As rather than string matching.
package errs

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", ErrX) to attach detail.
var (
	// ErrValidation: proposal violates structural or distance rules.
	ErrValidation = errors.New("validation error")

	// ErrRiskRejected: not a failure, published as risk-reject; present
	// here so callers can use errors.Is uniformly.
	ErrRiskRejected = errors.New("risk rejected")

	// ErrTransientFetch: candle fetch failed after exhausting retries.
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrGeneratorFailure: user SignalGenerator callback returned an error.
	ErrGeneratorFailure = errors.New("generator failure")

	// ErrPersistence: PositionStore write failed.
	ErrPersistence = errors.New("persistence failure")

	// ErrLogicInvariant: a fatal invariant violation (trailing-stop
	// direction flip, over-100% partials, simulate requested on a
	// non-pending signal, ...). Terminates the owning driver loop only.
	ErrLogicInvariant = errors.New("logic invariant violation")
)
