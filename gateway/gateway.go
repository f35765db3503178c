package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/netguard/cache"
	"github.com/jonwraymond/netguard/health"
	"github.com/jonwraymond/netguard/observe"
	"github.com/jonwraymond/netguard/queue"
	"github.com/jonwraymond/netguard/resilience"
	"github.com/jonwraymond/netguard/transport"
)

// StatusSource reports reachability and publishes changes.
type StatusSource interface {
	Current() health.Status
	Subscribe(fn health.Listener) (unsubscribe func())
}

// Result is the outcome of Issue.
type Result struct {
	// Response is the final response. Nil when the request was queued.
	Response *transport.Response

	// Attempts is the number of network attempts made.
	Attempts int

	// Queued reports that the request was deferred; QueueID identifies it.
	Queued  bool
	QueueID string

	// FromCache reports that Response was served from the offline cache,
	// stored at CachedAt.
	FromCache bool
	CachedAt  time.Time
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithCache serves cached responses to idempotent requests while offline
// and stores successful ones while online.
func WithCache(r *cache.Responses) Option {
	return func(g *Gateway) { g.cache = r }
}

// WithLogger sets the gateway logger.
func WithLogger(l observe.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMiddleware instruments every attempt made by the gateway.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(g *Gateway) { g.mw = mw }
}

// WithQueueing enables or disables diverting offline requests to the queue.
// Default: enabled when a queue is given.
func WithQueueing(enabled bool) Option {
	return func(g *Gateway) { g.queueing = enabled }
}

// WithAttemptTimeout bounds each attempt.
// Default: 30 seconds
func WithAttemptTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// IssueOption customizes a single Issue call.
type IssueOption func(*issueOptions)

type issueOptions struct {
	priority queue.Priority
	metadata map[string]any
	queueing bool
	direct   bool
}

// WithPriority sets the queue priority used if the request is deferred.
func WithPriority(p queue.Priority) IssueOption {
	return func(o *issueOptions) { o.priority = p }
}

// WithMetadata attaches metadata to the queued item if the request is
// deferred.
func WithMetadata(m map[string]any) IssueOption {
	return func(o *issueOptions) { o.metadata = m }
}

// NoQueue attempts the request even when the backend is offline, bypassing
// both the queue and the offline cache.
func NoQueue() IssueOption {
	return func(o *issueOptions) {
		o.queueing = false
		o.direct = true
	}
}

// Gateway executes requests with bounded retries, or defers them while the
// backend is offline.
//
// Contract:
//   - Concurrency: safe for concurrent use. Calls are independent; identical
//     in-flight requests are not deduplicated.
//   - Errors: Issue returns *OfflineError or *FailureError for failures.
//     A non-retryable non-2xx response is a Result, not an error.
type Gateway struct {
	status   StatusSource
	queue    *queue.Queue
	doer     transport.Doer
	retry    atomic.Pointer[resilience.Retry]
	cache    *cache.Responses
	logger   observe.Logger
	mw       *observe.Middleware
	queueing bool
	timeout  time.Duration
}

// New creates a gateway. q may be nil, which disables queueing. A nil retry
// uses resilience.DefaultRetry.
func New(status StatusSource, q *queue.Queue, doer transport.Doer, retry *resilience.Retry, opts ...Option) (*Gateway, error) {
	if status == nil {
		return nil, ErrNilStatus
	}
	if doer == nil {
		return nil, ErrNilDoer
	}
	if retry == nil {
		retry = resilience.DefaultRetry()
	}

	g := &Gateway{
		status:   status,
		queue:    q,
		doer:     doer,
		logger:   observe.NopLogger(),
		queueing: q != nil,
		timeout:  resilience.DefaultAttemptTimeout,
	}
	g.retry.Store(retry)

	for _, opt := range opts {
		opt(g)
	}
	if g.mw != nil {
		g.doer = g.mw.Wrap("gateway", g.doer)
	}
	g.logger = g.logger.With(observe.Component("gateway"))

	return g, nil
}

// Issue sends req. While the backend is offline the request is served from
// the cache when possible, otherwise queued; the queued Result returns at
// once without any network call. Otherwise req is attempted up to
// MaxRetries+1 times.
func (g *Gateway) Issue(ctx context.Context, req transport.Request, opts ...IssueOption) (*Result, error) {
	o := issueOptions{queueing: g.queueing}
	for _, opt := range opts {
		opt(&o)
	}

	if g.status.Current() == health.StatusOffline && !o.direct {
		if res, ok := g.fromCache(ctx, req); ok {
			return res, nil
		}
		if o.queueing && g.queue != nil {
			return g.enqueue(ctx, req, o)
		}
	}

	return g.attempt(ctx, req)
}

func (g *Gateway) fromCache(ctx context.Context, req transport.Request) (*Result, bool) {
	if g.cache == nil {
		return nil, false
	}
	resp, at, ok := g.cache.Lookup(ctx, req)
	if !ok {
		return nil, false
	}
	g.logger.Debug(ctx, "served from cache",
		observe.Field{Key: "target", Value: req.Target},
		observe.Field{Key: "age_ms", Value: time.Since(at).Milliseconds()},
	)
	return &Result{Response: resp, FromCache: true, CachedAt: at}, true
}

func (g *Gateway) enqueue(ctx context.Context, req transport.Request, o issueOptions) (*Result, error) {
	id, err := g.queue.Enqueue(req, queue.EnqueueOptions{
		Priority: o.priority,
		Metadata: o.metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: enqueue: %w", err)
	}
	g.logger.Info(ctx, "request queued while offline",
		observe.Field{Key: "item_id", Value: id},
		observe.Field{Key: "method", Value: req.MethodOrDefault()},
		observe.Field{Key: "target", Value: req.Target},
	)
	return &Result{Queued: true, QueueID: id}, nil
}

func (g *Gateway) attempt(ctx context.Context, req transport.Request) (*Result, error) {
	policy := g.RetryPolicy()

	guard := func(int) error {
		if g.status.Current() == health.StatusOffline {
			return ErrWentOffline
		}
		return nil
	}

	var lastErr error
	resp, attempts, err := resilience.Execute(ctx, policy, guard,
		func(ctx context.Context, _ int) (*transport.Response, int, error) {
			resp, err := resilience.Call(ctx, g.timeout, func(ctx context.Context) (*transport.Response, error) {
				return g.doer.Do(ctx, req)
			})
			lastErr = err
			return resp, resp.Code(), err
		})

	fields := []observe.Field{
		{Key: "method", Value: req.MethodOrDefault()},
		{Key: "target", Value: req.Target},
		{Key: "attempts", Value: attempts},
	}

	var exhausted *resilience.ExhaustedError
	switch {
	case err == nil:
		if g.cache != nil {
			g.cache.Store(ctx, req, resp)
		}
		return &Result{Response: resp, Attempts: attempts}, nil

	case errors.Is(err, ErrWentOffline):
		g.logger.Warn(ctx, "backend went offline, retries abandoned", fields...)
		return nil, &OfflineError{Attempts: attempts, Response: resp, Err: lastErr}

	case errors.As(err, &exhausted):
		g.logger.Warn(ctx, "retries exhausted", append(fields, observe.Field{Key: "error", Value: err.Error()})...)
		return nil, &FailureError{Attempts: attempts, Exhausted: true, Response: resp, Err: err}

	case ctx.Err() != nil:
		return nil, err

	default:
		g.logger.Warn(ctx, "permanent failure", append(fields, observe.Field{Key: "error", Value: err.Error()})...)
		return nil, &FailureError{Attempts: attempts, Response: resp, Err: err}
	}
}

// Status returns the current reachability status.
func (g *Gateway) Status() health.Status {
	return g.status.Current()
}

// Subscribe registers fn for status changes.
func (g *Gateway) Subscribe(fn health.Listener) (unsubscribe func()) {
	return g.status.Subscribe(fn)
}

// QueueStats returns the queue statistics, or zero stats without a queue.
func (g *Gateway) QueueStats() queue.Stats {
	if g.queue == nil {
		return queue.Stats{}
	}
	return g.queue.Stats()
}

// RetryPolicy returns the policy used for new calls.
func (g *Gateway) RetryPolicy() *resilience.Retry {
	return g.retry.Load()
}

// SetRetryPolicy replaces the policy for new calls and for the queue.
// Calls already running keep the policy they started with.
func (g *Gateway) SetRetryPolicy(r *resilience.Retry) {
	if r == nil {
		return
	}
	g.retry.Store(r)
	if g.queue != nil {
		g.queue.SetRetryPolicy(r)
	}
}
