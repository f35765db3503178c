// Package gateway is the call-site entry point for outbound requests.
//
// A Gateway consults a status source before every request. While the
// backend is offline, requests are diverted to a queue.Queue and the caller
// gets a queued Result at once; otherwise the request is attempted with
// bounded retries, aborting early if the backend goes offline between
// attempts. Successful idempotent responses can be cached and served while
// offline.
//
// GetJSON, PostJSON and Batch are thin helpers on top of Issue.
package gateway
