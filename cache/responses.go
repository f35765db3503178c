package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonwraymond/netguard/transport"
)

// Responses caches successful responses for replay while the backend is
// unreachable.
type Responses struct {
	cache  Cache
	keyer  Keyer
	policy Policy
}

// NewResponses creates a response cache. A nil keyer uses DefaultKeyer.
func NewResponses(c Cache, keyer Keyer, policy Policy) (*Responses, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	return &Responses{cache: c, keyer: keyer, policy: policy}, nil
}

type storedResponse struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body,omitempty"`
	StoredAt   time.Time   `json:"stored_at"`
}

// Store records resp for req if the policy allows it. It reports whether the
// response was stored.
func (r *Responses) Store(ctx context.Context, req transport.Request, resp *transport.Response) bool {
	if !r.policy.Cacheable(req, resp) {
		return false
	}
	key, err := r.keyer.Key(req)
	if err != nil {
		return false
	}
	data, err := json.Marshal(storedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		StoredAt:   time.Now(),
	})
	if err != nil {
		return false
	}
	return r.cache.Set(ctx, key, data, r.policy.EffectiveTTL(0)) == nil
}

// Lookup returns the cached response for req and the time it was stored.
func (r *Responses) Lookup(ctx context.Context, req transport.Request) (*transport.Response, time.Time, bool) {
	if !r.policy.storesMethodOf(req) {
		return nil, time.Time{}, false
	}
	key, err := r.keyer.Key(req)
	if err != nil {
		return nil, time.Time{}, false
	}
	data, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, time.Time{}, false
	}

	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		_ = r.cache.Delete(ctx, key)
		return nil, time.Time{}, false
	}
	return &transport.Response{
		StatusCode: stored.StatusCode,
		Header:     stored.Header,
		Body:       stored.Body,
	}, stored.StoredAt, true
}

// Invalidate removes the cached response for req.
func (r *Responses) Invalidate(ctx context.Context, req transport.Request) error {
	key, err := r.keyer.Key(req)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, key)
}
