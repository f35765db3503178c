// Package cache keeps successful responses to idempotent requests so they
// can be served while the backend is unreachable.
//
// A Cache stores opaque bytes with a TTL; MemoryCache is the in-process
// implementation. Responses layers request keying (Keyer) and a Policy on
// top of any Cache.
package cache
