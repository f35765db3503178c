package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// DefaultRetryableStatusCodes are the response codes retried when
// RetryConfig.RetryableStatusCodes is empty.
var DefaultRetryableStatusCodes = []int{408, 429, 500, 502, 503, 504}

// DefaultRetryableErrors are the error signatures retried when
// RetryConfig.RetryableErrors is empty. Matching is a case-insensitive
// substring test against err.Error().
var DefaultRetryableErrors = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"eof",
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero selects the default; a negative value disables retries.
	// Default: 3
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	// Default: 2.0
	Multiplier float64

	// RetryableStatusCodes lists response codes that trigger a retry.
	// Default: DefaultRetryableStatusCodes
	RetryableStatusCodes []int

	// RetryableErrors lists error message fragments that trigger a retry.
	// Default: DefaultRetryableErrors
	RetryableErrors []string

	// Jitter adds up to Jitter*delay of random extra delay, in [0, 1].
	// The result is still capped at MaxDelay.
	// Default: 0 (deterministic backoff)
	Jitter float64

	// OnRetry is called before each backoff wait with the zero-based retry
	// index, the same index passed to Backoff and Guard.
	OnRetry func(retry int, err error, delay time.Duration)
}

// Retry is an immutable retry policy. Replace it wholesale to change
// behavior; it is safe for concurrent use.
type Retry struct {
	config     RetryConfig
	statuses   map[int]struct{}
	signatures []string
}

// NewRetry creates a retry policy, applying defaults to zero fields.
func NewRetry(config RetryConfig) *Retry {
	switch {
	case config.MaxRetries == 0:
		config.MaxRetries = 3
	case config.MaxRetries < 0:
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	if config.Multiplier < 1 {
		config.Multiplier = 2.0
	}
	if len(config.RetryableStatusCodes) == 0 {
		config.RetryableStatusCodes = slices.Clone(DefaultRetryableStatusCodes)
	}
	if len(config.RetryableErrors) == 0 {
		config.RetryableErrors = slices.Clone(DefaultRetryableErrors)
	}
	config.Jitter = min(max(config.Jitter, 0), 1)

	r := &Retry{
		config:     config,
		statuses:   make(map[int]struct{}, len(config.RetryableStatusCodes)),
		signatures: make([]string, 0, len(config.RetryableErrors)),
	}
	for _, code := range config.RetryableStatusCodes {
		r.statuses[code] = struct{}{}
	}
	for _, sig := range config.RetryableErrors {
		if sig = strings.ToLower(strings.TrimSpace(sig)); sig != "" {
			r.signatures = append(r.signatures, sig)
		}
	}
	return r
}

// DefaultRetry returns the policy with every default applied.
func DefaultRetry() *Retry {
	return NewRetry(RetryConfig{})
}

// MaxRetries returns the number of retries after the initial attempt.
func (r *Retry) MaxRetries() int {
	return r.config.MaxRetries
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	cfg := r.config
	cfg.RetryableStatusCodes = slices.Clone(cfg.RetryableStatusCodes)
	cfg.RetryableErrors = slices.Clone(cfg.RetryableErrors)
	return cfg
}

// Backoff returns the wait before retry number n (zero-based):
// min(BaseDelay * Multiplier^n, MaxDelay).
func (r *Retry) Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(n))

	if r.config.Jitter > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += delay * r.config.Jitter * rand.Float64()
	}

	// Compare as float so huge exponents cannot overflow time.Duration.
	if delay >= float64(r.config.MaxDelay) || math.IsInf(delay, 1) || math.IsNaN(delay) {
		return r.config.MaxDelay
	}
	return time.Duration(delay)
}

// RetryableStatus reports whether a response code should be retried.
func (r *Retry) RetryableStatus(code int) bool {
	_, ok := r.statuses[code]
	return ok
}

// RetryableError reports whether err matches one of the retryable
// signatures. Caller cancellation is never retryable.
func (r *Retry) RetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range r.signatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// ShouldRetry classifies the outcome of one attempt. A transport error is
// judged by its message; otherwise the status code decides.
func (r *Retry) ShouldRetry(statusCode int, err error) bool {
	if err != nil {
		return r.RetryableError(err)
	}
	return r.RetryableStatus(statusCode)
}

// AttemptFunc performs attempt number n (zero-based). It returns the
// attempt's value, the response status code (0 when there was no
// response), and any transport error.
type AttemptFunc[T any] func(ctx context.Context, n int) (T, int, error)

// Guard is consulted before each retry. A non-nil error aborts the
// sequence and is returned unchanged.
type Guard func(retry int) error

// Execute runs op with up to MaxRetries retries. It returns the value of
// the final attempt, the number of attempts made, and:
//   - nil when the last outcome was not retryable and carried no error;
//   - the attempt's own error when it was not retryable;
//   - an *ExhaustedError once every retry was spent;
//   - the guard's error or ctx.Err() when the sequence was aborted.
func Execute[T any](ctx context.Context, r *Retry, guard Guard, op AttemptFunc[T]) (T, int, error) {
	var (
		last     T
		lastCode int
		lastErr  error
	)

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			retry := attempt - 1
			if guard != nil {
				if err := guard(retry); err != nil {
					return last, attempt, err
				}
			}

			delay := r.Backoff(retry)
			if r.config.OnRetry != nil {
				r.config.OnRetry(retry, attemptError(lastCode, lastErr), delay)
			}
			if err := Sleep(ctx, delay); err != nil {
				return last, attempt, err
			}

			// Connectivity may have changed while waiting.
			if guard != nil {
				if err := guard(retry); err != nil {
					return last, attempt, err
				}
			}
		}

		value, code, err := op(ctx, attempt)
		last, lastCode, lastErr = value, code, err

		if err != nil && ctx.Err() != nil {
			return last, attempt + 1, ctx.Err()
		}
		if !r.ShouldRetry(code, err) {
			return last, attempt + 1, err
		}
	}

	attempts := r.config.MaxRetries + 1
	return last, attempts, &ExhaustedError{
		Attempts:   attempts,
		StatusCode: lastCode,
		Err:        lastErr,
	}
}

// Sleep waits for d or until ctx is done, releasing the timer either way.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func attemptError(code int, err error) error {
	if err != nil {
		return err
	}
	return &StatusError{StatusCode: code}
}
