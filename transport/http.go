package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultMaxBodyBytes caps buffered response bodies.
const DefaultMaxBodyBytes = 10 << 20

var (
	// ErrInvalidTarget indicates a request target that cannot form a URL.
	ErrInvalidTarget = errors.New("transport: invalid target")

	// ErrBodyTooLarge is returned when a response body exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("transport: response body too large")
)

// HTTPConfig configures the HTTP doer.
type HTTPConfig struct {
	// BaseURL resolves relative request targets. Optional.
	BaseURL string

	// Client performs requests.
	// Default: a client without its own timeout; attempts are bounded by context.
	Client *http.Client

	// MaxBodyBytes caps how much of a response body is buffered.
	// Default: 10 MiB
	MaxBodyBytes int64

	// UserAgent is sent when the request has none.
	UserAgent string

	// Header is added to every request that does not set the same key.
	Header http.Header
}

// HTTP is a Doer backed by net/http.
type HTTP struct {
	config HTTPConfig
	base   *url.URL
}

// NewHTTP creates an HTTP doer.
func NewHTTP(config HTTPConfig) (*HTTP, error) {
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	h := &HTTP{config: config}
	if config.BaseURL != "" {
		base, err := url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("transport: parse base url: %w", err)
		}
		if base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("%w: base url %q must be absolute", ErrInvalidTarget, config.BaseURL)
		}
		h.base = base
	}
	return h, nil
}

// Do performs the request and buffers the response body.
func (h *HTTP) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := h.ResolveURL(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.MethodOrDefault(), target, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	for k, values := range h.config.Header {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header[http.CanonicalHeaderKey(k)] = values
		}
	}
	if h.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.config.UserAgent)
	}

	start := time.Now()
	resp, err := h.config.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}
	if int64(len(data)) > h.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %d %s exceeds %d bytes", ErrBodyTooLarge, resp.StatusCode, httpReq.URL.Path, h.config.MaxBodyBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

// ResolveURL builds the absolute URL for req.
func (h *HTTP) ResolveURL(req Request) (string, error) {
	ref, err := url.Parse(req.Target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !ref.IsAbs() {
		if h.base == nil {
			return "", fmt.Errorf("%w: relative target %q without base url", ErrInvalidTarget, req.Target)
		}
		ref = h.base.ResolveReference(ref)
	}

	if len(req.Query) > 0 {
		q := ref.Query()
		for k, values := range req.Query {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		ref.RawQuery = q.Encode()
	}
	return ref.String(), nil
}

var _ Doer = (*HTTP)(nil)
