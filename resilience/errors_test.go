package resilience

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded},
		{"ErrTimeout", ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.err.Error(), "resilience: ") {
				t.Errorf("%s = %q, want resilience: prefix", tt.name, tt.err.Error())
			}
		})
	}
}

func TestExhaustedError(t *testing.T) {
	withCause := &ExhaustedError{Attempts: 4, Err: io.ErrUnexpectedEOF}
	if !errors.Is(withCause, ErrMaxRetriesExceeded) {
		t.Error("errors.Is(ErrMaxRetriesExceeded) = false")
	}
	if !errors.Is(withCause, io.ErrUnexpectedEOF) {
		t.Error("errors.Is(cause) = false")
	}

	withStatus := &ExhaustedError{Attempts: 4, StatusCode: 503}
	var statusErr *StatusError
	if !errors.As(withStatus, &statusErr) || statusErr.StatusCode != 503 {
		t.Errorf("errors.As(*StatusError) = %v", statusErr)
	}
	if !strings.Contains(withStatus.Error(), "4 attempts") {
		t.Errorf("Error() = %q", withStatus.Error())
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{StatusCode: 429}
	if got := err.Error(); got != "resilience: status 429 Too Many Requests" {
		t.Errorf("Error() = %q", got)
	}
}
