package resilience

import (
	"context"
	"errors"
	"time"
)

// DefaultAttemptTimeout bounds an attempt when no timeout is configured.
const DefaultAttemptTimeout = 30 * time.Second

// Call runs op under a deadline of d. When the deadline passes first the
// attempt is abandoned (its context is cancelled) and ErrTimeout is
// returned; the context's timer is released on every path.
func Call[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := op(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out.value, ErrTimeout
		}
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
