package transport

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// Request describes one outbound operation. It is a value type so it can
// be queued and replayed; use Clone before mutating a shared request.
type Request struct {
	// Method is the HTTP method. Default: GET
	Method string

	// Target is an absolute URL or a path resolved against the doer's base URL.
	Target string

	// Query holds request parameters appended to the target URL.
	Query url.Values

	// Header holds request headers.
	Header http.Header

	// Body is the request payload.
	Body []byte
}

// MethodOrDefault returns Method, or GET when it is empty.
func (r Request) MethodOrDefault() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Idempotent reports whether replaying the request has no side effects.
func (r Request) Idempotent() bool {
	switch r.MethodOrDefault() {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	out := r
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = slices.Clone(v)
		}
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	out.Body = slices.Clone(r.Body)
	return out
}

// Response is the buffered result of one attempt.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Duration is the wall time of the attempt.
	Duration time.Duration
}

// Code returns the status code, or 0 for a nil response.
func (r *Response) Code() int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	code := r.Code()
	return code >= 200 && code < 300
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	out.Body = slices.Clone(r.Body)
	return &out
}

// Doer executes a single attempt of a request.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: Do must honor cancellation and deadlines.
//   - Errors: a non-2xx response is not an error; errors mean no usable
//     response was received.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoerFunc adapts an ordinary function to the Doer interface.
type DoerFunc func(ctx context.Context, req Request) (*Response, error)

// Do calls f(ctx, req).
func (f DoerFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
