package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"testing/synctest"
	"time"

	"pgregory.net/rapid"
)

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	cfg := r.Config()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", cfg.Multiplier)
	}
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !r.RetryableStatus(code) {
			t.Errorf("RetryableStatus(%d) = false, want true", code)
		}
	}
	if cfg.Jitter != 0 {
		t.Errorf("Jitter = %f, want 0", cfg.Jitter)
	}
}

func TestNewRetry_NegativeDisablesRetries(t *testing.T) {
	r := NewRetry(RetryConfig{MaxRetries: -1})
	if r.MaxRetries() != 0 {
		t.Errorf("MaxRetries() = %d, want 0", r.MaxRetries())
	}
}

func TestRetry_Backoff(t *testing.T) {
	r := NewRetry(RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
	})

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{200, 30 * time.Second},
		{-1, time.Second},
	}

	for _, tt := range tests {
		if got := r.Backoff(tt.n); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestRetry_BackoffJitterStaysCapped(t *testing.T) {
	r := NewRetry(RetryConfig{
		BaseDelay: time.Second,
		MaxDelay:  3 * time.Second,
		Jitter:    1,
	})

	for i := 0; i < 100; i++ {
		d := r.Backoff(1)
		if d < 2*time.Second || d > 3*time.Second {
			t.Fatalf("Backoff(1) = %v, want within [2s, 3s]", d)
		}
	}
}

func TestRetry_BackoffMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Duration(rapid.Int64Range(1, int64(10*time.Second)).Draw(t, "base"))
		maxDelay := base + time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(t, "extra"))
		mult := rapid.Float64Range(1, 10).Draw(t, "multiplier")
		n := rapid.IntRange(0, 500).Draw(t, "n")

		r := NewRetry(RetryConfig{BaseDelay: base, MaxDelay: maxDelay, Multiplier: mult})

		cur, next := r.Backoff(n), r.Backoff(n+1)
		if cur > next {
			t.Fatalf("Backoff(%d) = %v > Backoff(%d) = %v", n, cur, n+1, next)
		}
		if next > maxDelay {
			t.Fatalf("Backoff(%d) = %v exceeds MaxDelay %v", n+1, next, maxDelay)
		}
	})
}

func TestRetry_RetryableError(t *testing.T) {
	r := NewRetry(RetryConfig{RetryableErrors: []string{"Network Error", "ECONNRESET"}})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"case-insensitive match", errors.New("fetch failed: network error"), true},
		{"substring match", errors.New("read: econnreset by peer"), true},
		{"no match", errors.New("invalid payload"), false},
		{"canceled", context.Canceled, false},
		{"attempt timeout", ErrTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RetryableError(tt.err); got != tt.want {
				t.Errorf("RetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_ShouldRetry(t *testing.T) {
	r := DefaultRetry()

	if !r.ShouldRetry(503, nil) {
		t.Error("ShouldRetry(503, nil) = false, want true")
	}
	if r.ShouldRetry(404, nil) {
		t.Error("ShouldRetry(404, nil) = true, want false")
	}
	if r.ShouldRetry(200, nil) {
		t.Error("ShouldRetry(200, nil) = true, want false")
	}
	if !r.ShouldRetry(0, errors.New("dial tcp: connection refused")) {
		t.Error("ShouldRetry(connection refused) = false, want true")
	}
	if r.ShouldRetry(503, errors.New("bad request body")) {
		t.Error("transport error must be judged by its message, not the status")
	}
}

func TestExecute_SuccessOnFirstAttempt(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: time.Millisecond})

	calls := 0
	v, attempts, err := Execute(context.Background(), r, nil, func(ctx context.Context, n int) (string, int, error) {
		calls++
		return "ok", 200, nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if v != "ok" || attempts != 1 || calls != 1 {
		t.Errorf("got (%q, %d attempts, %d calls), want (ok, 1, 1)", v, attempts, calls)
	}
}

func TestExecute_RetriesWithBackoffDelays(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := NewRetry(RetryConfig{})

		var gaps []time.Duration
		last := time.Now()
		_, attempts, err := Execute(context.Background(), r, nil, func(ctx context.Context, n int) (int, int, error) {
			now := time.Now()
			if n > 0 {
				gaps = append(gaps, now.Sub(last))
			}
			last = now
			if n < 3 {
				return 0, 503, nil
			}
			return 1, 200, nil
		})

		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if attempts != 4 {
			t.Errorf("attempts = %d, want 4", attempts)
		}
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
		if len(gaps) != len(want) {
			t.Fatalf("gaps = %v, want %v", gaps, want)
		}
		for i := range want {
			if gaps[i] != want[i] {
				t.Errorf("gap[%d] = %v, want %v", i, gaps[i], want[i])
			}
		}
	})
}

func TestExecute_Exhausted(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := NewRetry(RetryConfig{MaxRetries: 2})

		calls := 0
		_, attempts, err := Execute(context.Background(), r, nil, func(ctx context.Context, n int) (int, int, error) {
			calls++
			return 0, 502, nil
		})

		if !errors.Is(err, ErrMaxRetriesExceeded) {
			t.Fatalf("err = %v, want ErrMaxRetriesExceeded", err)
		}
		var exhausted *ExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("err = %T, want *ExhaustedError", err)
		}
		if exhausted.StatusCode != 502 {
			t.Errorf("StatusCode = %d, want 502", exhausted.StatusCode)
		}
		if attempts != 3 || calls != 3 {
			t.Errorf("attempts = %d, calls = %d, want 3", attempts, calls)
		}
	})
}

func TestExecute_NonRetryableErrorReturnsImmediately(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: time.Millisecond})
	permanent := errors.New("malformed request")

	calls := 0
	_, attempts, err := Execute(context.Background(), r, nil, func(ctx context.Context, n int) (int, int, error) {
		calls++
		return 0, 0, permanent
	})

	if err != permanent {
		t.Errorf("err = %v, want %v", err, permanent)
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("attempts = %d, calls = %d, want 1", attempts, calls)
	}
}

func TestExecute_NonRetryableStatusReturnsResult(t *testing.T) {
	r := NewRetry(RetryConfig{BaseDelay: time.Millisecond})

	v, attempts, err := Execute(context.Background(), r, nil, func(ctx context.Context, n int) (string, int, error) {
		return "not found", 404, nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if v != "not found" || attempts != 1 {
		t.Errorf("got (%q, %d), want (not found, 1)", v, attempts)
	}
}

func TestExecute_GuardAborts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := NewRetry(RetryConfig{})
		abort := errors.New("went offline")

		calls := 0
		_, attempts, err := Execute(context.Background(), r,
			func(retry int) error {
				if retry >= 1 {
					return abort
				}
				return nil
			},
			func(ctx context.Context, n int) (int, int, error) {
				calls++
				return 0, 503, nil
			})

		if err != abort {
			t.Errorf("err = %v, want %v", err, abort)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := NewRetry(RetryConfig{MaxRetries: 10})
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			time.Sleep(1500 * time.Millisecond)
			cancel()
		}()

		_, _, err := Execute(ctx, r, nil, func(ctx context.Context, n int) (int, int, error) {
			return 0, 500, nil
		})

		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestExecute_OnRetry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var delays []time.Duration
		var causes []error
		var retries []int
		r := NewRetry(RetryConfig{
			MaxRetries: 2,
			OnRetry: func(retry int, err error, delay time.Duration) {
				retries = append(retries, retry)
				delays = append(delays, delay)
				causes = append(causes, err)
			},
		})

		_, _, _ = Execute(context.Background(), r, nil, func(ctx context.Context, n int) (int, int, error) {
			return 0, 429, nil
		})

		if !slices.Equal(retries, []int{0, 1}) {
			t.Errorf("retries = %v, want [0 1]", retries)
		}
		if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
			t.Errorf("delays = %v, want [1s 2s]", delays)
		}
		var statusErr *StatusError
		if len(causes) == 0 || !errors.As(causes[0], &statusErr) || statusErr.StatusCode != 429 {
			t.Errorf("causes = %v, want status 429", causes)
		}
	})
}

func TestSleep(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start := time.Now()
		if err := Sleep(context.Background(), 3*time.Second); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
		if got := time.Since(start); got != 3*time.Second {
			t.Errorf("slept %v, want 3s", got)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Sleep(ctx, time.Hour); err != context.Canceled {
			t.Errorf("Sleep(cancelled) = %v, want context.Canceled", err)
		}
	})
}
