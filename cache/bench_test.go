package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jonwraymond/netguard/transport"
)

func BenchmarkDefaultKeyer_Key(b *testing.B) {
	k := NewDefaultKeyer()
	req := transport.Request{Target: "/search", Query: url.Values{"q": {"cats"}, "page": {"2"}, "sort": {"new"}}}

	for b.Loop() {
		_, _ = k.Key(req)
	}
}

func BenchmarkMemoryCache_Get(b *testing.B) {
	c := NewMemoryCache(0)
	ctx := context.Background()
	_ = c.Set(ctx, "k", make([]byte, 1024), time.Hour)

	for b.Loop() {
		_, _ = c.Get(ctx, "k")
	}
}

func BenchmarkResponses_Lookup(b *testing.B) {
	r, _ := NewResponses(NewMemoryCache(0), nil, DefaultPolicy())
	ctx := context.Background()
	req := transport.Request{Target: "/videos"}
	r.Store(ctx, req, &transport.Response{StatusCode: 200, Body: make([]byte, 4096)})

	for b.Loop() {
		_, _, _ = r.Lookup(ctx, req)
	}
}
