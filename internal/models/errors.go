package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the data tier. ErrProviderUnavailable is absorbed by
// the gateway's fallback chain; only ErrDataUnavailable escapes it.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrDataUnavailable     = errors.New("environmental data unavailable from all tiers")
	ErrInvariantViolation  = errors.New("open payout already exists for policy and hazard")
	ErrIllegalTransition   = errors.New("payout state transition not allowed")
	ErrPayoutNotFound      = errors.New("payout not found")
)

// ConfigError is fatal at startup; it is never produced per-request.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// PaymentError classifies payment port failures. Transient errors are
// retried with backoff; permanent ones move the payout to failed.
type PaymentError struct {
	Code      string
	Transient bool
	Err       error
}

func (e *PaymentError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return fmt.Sprintf("payment %s error (%s): %v", kind, e.Code, e.Err)
	}
	return fmt.Sprintf("payment %s error (%s)", kind, e.Code)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// IsTransientPaymentError reports whether err is a retryable payment failure.
func IsTransientPaymentError(err error) bool {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
