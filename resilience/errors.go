package resilience

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded is matched by every *ExhaustedError.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrTimeout is returned when an attempt outlives its timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// StatusError describes an attempt that received a response with a
// failing status code.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ExhaustedError is returned by Execute when every retry failed with a
// retryable outcome.
type ExhaustedError struct {
	// Attempts is the total number of attempts, including the first.
	Attempts int

	// StatusCode is the status of the final attempt, or 0 if it had none.
	StatusCode int

	// Err is the final attempt's transport error, if any.
	Err error
}

func (e *ExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resilience: max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("resilience: max retries exceeded after %d attempts: status %d", e.Attempts, e.StatusCode)
}

// Unwrap exposes both ErrMaxRetriesExceeded and the final cause.
func (e *ExhaustedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMaxRetriesExceeded, e.Err}
	}
	return []error{ErrMaxRetriesExceeded, &StatusError{StatusCode: e.StatusCode}}
}
