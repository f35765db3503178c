package gateway

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/netguard/transport"
)

// Sentinel errors for gateway operations.
var (
	// ErrNilStatus is returned by New without a status source.
	ErrNilStatus = errors.New("gateway: status source is nil")

	// ErrNilDoer is returned by New without a doer.
	ErrNilDoer = errors.New("gateway: doer is nil")

	// ErrWentOffline is matched by every *OfflineError.
	ErrWentOffline = errors.New("gateway: backend went offline")

	// ErrPermanent is matched by a *FailureError for a non-retryable error.
	ErrPermanent = errors.New("gateway: permanent failure")

	// ErrRetriesExhausted is matched by a *FailureError after every retry
	// failed.
	ErrRetriesExhausted = errors.New("gateway: retries exhausted")

	// ErrQueued is returned by the typed helpers when the request was
	// queued and no response is available yet.
	ErrQueued = errors.New("gateway: request queued")
)

// OfflineError reports that the backend went offline between attempts and
// the remaining retries were abandoned.
type OfflineError struct {
	Attempts int
	Response *transport.Response // last response, if any
	Err      error               // last attempt error, if any
}

func (e *OfflineError) Error() string {
	return fmt.Sprintf("gateway: backend went offline after %d attempts", e.Attempts)
}

// Is matches ErrWentOffline.
func (e *OfflineError) Is(target error) bool {
	return target == ErrWentOffline
}

func (e *OfflineError) Unwrap() error {
	return e.Err
}

// FailureError reports a request that failed for good.
type FailureError struct {
	Attempts int

	// Exhausted is true when every attempt failed with a retryable outcome.
	Exhausted bool

	Response *transport.Response // last response, if any
	Err      error               // cause
}

func (e *FailureError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("gateway: retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("gateway: permanent failure: %v", e.Err)
}

// Is matches ErrRetriesExhausted or ErrPermanent.
func (e *FailureError) Is(target error) bool {
	if e.Exhausted {
		return target == ErrRetriesExhausted
	}
	return target == ErrPermanent
}

func (e *FailureError) Unwrap() error {
	return e.Err
}
