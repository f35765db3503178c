package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonwraymond/netguard/transport"
)

const bearerPrefix = "Bearer "

// Transport is an http.RoundTripper that sets a bearer token on every
// request that does not already carry an Authorization header.
type Transport struct {
	Source TokenSource

	// Base performs the request. Default: http.DefaultTransport
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	token, err := t.Source.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", bearerPrefix+token)
	return base.RoundTrip(out)
}

// Doer wraps next so every request carries a bearer token from src. Queued
// requests get a fresh token when they are finally sent.
func Doer(src TokenSource, next transport.Doer) transport.Doer {
	return transport.DoerFunc(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		if req.Header.Get("Authorization") != "" {
			return next.Do(ctx, req)
		}
		token, err := src.Token(ctx)
		if err != nil {
			return nil, err
		}
		req = req.Clone()
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Set("Authorization", bearerPrefix+token)
		return next.Do(ctx, req)
	})
}

// RequireBearer rejects requests without a valid bearer token with 401.
func RequireBearer(v *Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if _, err := v.Verify(r.Context(), token); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
