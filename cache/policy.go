package cache

import (
	"time"

	"github.com/jonwraymond/netguard/transport"
)

// Policy decides which gateway responses are stored and for how long.
type Policy struct {
	// DefaultTTL applies when no override is given. Zero disables caching.
	DefaultTTL time.Duration

	// MaxTTL caps every TTL. Zero means uncapped.
	MaxTTL time.Duration

	// AllowUnsafe lets responses to POST, PUT, PATCH and DELETE be stored.
	AllowUnsafe bool
}

// DefaultPolicy keeps responses for five minutes and never longer than an hour.
func DefaultPolicy() Policy {
	return Policy{DefaultTTL: 5 * time.Minute, MaxTTL: time.Hour}
}

// NoCachePolicy stores nothing.
func NoCachePolicy() Policy { return Policy{} }

// ShouldCache reports whether the policy stores anything at all.
func (p Policy) ShouldCache() bool { return p.DefaultTTL > 0 }

func (p Policy) storesMethodOf(req transport.Request) bool {
	return p.ShouldCache() && (p.AllowUnsafe || req.Idempotent())
}

// Cacheable reports whether resp, answering req, may be stored. Only
// successful responses are.
func (p Policy) Cacheable(req transport.Request, resp *transport.Response) bool {
	return p.storesMethodOf(req) && resp.OK()
}

// EffectiveTTL resolves override against the policy: non-positive values
// fall back to DefaultTTL and the result never exceeds MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := p.DefaultTTL
	if override > 0 {
		ttl = override
	}
	if p.MaxTTL > 0 {
		ttl = min(ttl, p.MaxTTL)
	}
	return ttl
}
