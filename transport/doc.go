// Package transport defines the request and response values that flow
// through the gateway and the request queue, and an HTTP implementation
// of the Doer interface that executes them.
//
// Requests are plain values so that a deferred operation can sit in the
// queue and be replayed later without holding on to connection state.
package transport
