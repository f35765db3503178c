package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Prober performs one reachability probe. A nil error means the backend
// answered successfully.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts an ordinary function to a Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// HTTPProber probes a liveness endpoint over HTTP.
type HTTPProber struct {
	// URL is the liveness endpoint.
	URL string

	// Method is the request method.
	// Default: HEAD
	Method string

	// Client sends the probe.
	// Default: http.DefaultClient
	Client *http.Client
}

// Probe sends one request and succeeds on any 2xx response.
func (p *HTTPProber) Probe(ctx context.Context) error {
	method := p.Method
	if method == "" {
		method = http.MethodHead
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
	if err != nil {
		return fmt.Errorf("health: build probe: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrProbeFailed, resp.StatusCode)
	}
	return nil
}
