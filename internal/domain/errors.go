package domain

import (
	"errors"
	"fmt"
)

// FailureKind is the closed taxonomy of delivery failures. Classification
// happens once, in the destination adapters; everything downstream switches
// on the variant instead of matching error text.
type FailureKind string

const (
	// FailTransient covers network errors, 5xx responses and timeouts.
	// Transient failures are retried with backoff.
	FailTransient FailureKind = "transient"
	// FailRateLimited is a destination-side 429. Retried like transient.
	FailRateLimited FailureKind = "rate_limited"
	// FailPermanentAuth is an invalid or revoked credential. Never retried.
	FailPermanentAuth FailureKind = "permanent_auth"
	// FailPermanentConfig is a malformed or missing destination config. Never retried.
	FailPermanentConfig FailureKind = "permanent_config"
	// FailMediaUnavailable means the media pipeline exhausted its fallbacks.
	FailMediaUnavailable FailureKind = "media_unavailable"
)

// operatorText maps each failure variant to user-facing diagnostic text.
var operatorText = map[FailureKind]string{
	FailTransient:        "temporary delivery problem, will retry automatically",
	FailRateLimited:      "destination is rate limiting us, will retry automatically",
	FailPermanentAuth:    "destination rejected the bot credential, check the bot token",
	FailPermanentConfig:  "destination configuration is invalid, check the mapping",
	FailMediaUnavailable: "attached media could not be fetched or converted",
}

// OperatorText returns the friendly diagnostic for a failure kind.
func OperatorText(k FailureKind) string {
	if t, ok := operatorText[k]; ok {
		return t
	}
	return "delivery failed"
}

// DeliveryError carries a failure variant alongside the underlying cause.
type DeliveryError struct {
	Kind FailureKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether the failure should go through the retry queue.
func (e *DeliveryError) Retryable() bool {
	return e.Kind == FailTransient || e.Kind == FailRateLimited
}

// NewDeliveryError wraps err with a failure variant.
func NewDeliveryError(kind FailureKind, err error) *DeliveryError {
	return &DeliveryError{Kind: kind, Err: err}
}

// ClassifyDelivery extracts the failure kind from an error chain.
// Unclassified errors are treated as transient so they get retried rather
// than silently abandoned.
func ClassifyDelivery(err error) FailureKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return FailTransient
}

// IsRetryable reports whether an error chain represents a retryable failure.
func IsRetryable(err error) bool {
	k := ClassifyDelivery(err)
	return k == FailTransient || k == FailRateLimited
}
