package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonwraymond/netguard/resilience"
	"github.com/jonwraymond/netguard/transport"
)

const contentTypeJSON = "application/json"

// DecodeJSON decodes the JSON body of res into T. A queued result yields
// ErrQueued; a non-2xx response yields a *resilience.StatusError.
func DecodeJSON[T any](res *Result) (T, error) {
	var out T
	switch {
	case res == nil:
		return out, fmt.Errorf("gateway: decode: nil result")
	case res.Queued:
		return out, ErrQueued
	case !res.Response.OK():
		return out, &resilience.StatusError{StatusCode: res.Response.Code()}
	case len(res.Response.Body) == 0:
		return out, nil
	}
	if err := json.Unmarshal(res.Response.Body, &out); err != nil {
		return out, fmt.Errorf("gateway: decode: %w", err)
	}
	return out, nil
}

// GetJSON issues a GET for target with query and decodes the response.
// The Result is returned alongside so callers can tell a cached or queued
// outcome from a live one.
func GetJSON[T any](ctx context.Context, g *Gateway, target string, query url.Values, opts ...IssueOption) (T, *Result, error) {
	req := transport.Request{
		Method: http.MethodGet,
		Target: target,
		Query:  query,
		Header: http.Header{"Accept": {contentTypeJSON}},
	}
	return doJSON[T](ctx, g, req, opts)
}

// PostJSON issues a POST of body encoded as JSON and decodes the response.
func PostJSON[T any](ctx context.Context, g *Gateway, target string, body any, opts ...IssueOption) (T, *Result, error) {
	var zero T
	payload, err := json.Marshal(body)
	if err != nil {
		return zero, nil, fmt.Errorf("gateway: encode: %w", err)
	}
	req := transport.Request{
		Method: http.MethodPost,
		Target: target,
		Header: http.Header{
			"Accept":       {contentTypeJSON},
			"Content-Type": {contentTypeJSON},
		},
		Body: payload,
	}
	return doJSON[T](ctx, g, req, opts)
}

func doJSON[T any](ctx context.Context, g *Gateway, req transport.Request, opts []IssueOption) (T, *Result, error) {
	var zero T
	res, err := g.Issue(ctx, req, opts...)
	if err != nil {
		return zero, nil, err
	}
	out, err := DecodeJSON[T](res)
	return out, res, err
}
