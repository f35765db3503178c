package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/netguard/health"
	"github.com/jonwraymond/netguard/observe"
	"github.com/jonwraymond/netguard/resilience"
	"github.com/jonwraymond/netguard/transport"
)

// Config configures a Queue.
type Config struct {
	// MaxSize bounds the number of waiting items.
	// Default: 100
	MaxSize int

	// FlushInterval is the period of the drain timer.
	// Default: 5 seconds
	FlushInterval time.Duration

	// MaxConcurrent bounds the number of items in flight.
	// Default: 3
	MaxConcurrent int

	// RequestTimeout bounds a single delivery attempt.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// Retry decides which failures are retried and how long to wait.
	// Default: resilience.DefaultRetry()
	Retry *resilience.Retry

	// OnOutcome, if set, is called once for every item that is delivered,
	// dropped or evicted. It runs on a queue goroutine and must not block.
	OnOutcome func(Outcome)
}

// StatusSource reports reachability.
type StatusSource interface {
	Current() health.Status
}

// Option customizes a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(l observe.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithMiddleware instruments delivery attempts and records queue metrics.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(q *Queue) { q.mw = mw }
}

// Queue is a bounded two-band queue of deferred requests.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Len() <= MaxSize after every Enqueue.
//   - At most MaxConcurrent items are in flight.
//   - Each dispatched item leaves the in-flight set exactly once per attempt.
type Queue struct {
	cfg     Config
	doer    transport.Doer
	status  StatusSource
	logger  observe.Logger
	metrics observe.Metrics
	mw      *observe.Middleware
	retry   atomic.Pointer[resilience.Retry]
	slots   *resilience.Slots

	mu         sync.Mutex
	items      []*Item // index 0 is the head
	processing map[string]*Item
	waiting    int
	seq        uint64
	delivered  int64
	retried    int64
	dropped    int64
	evicted    int64
	closed     bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	// ctx is cancelled by Close to cut backoff waits short.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue that delivers through doer while status reports the
// backend as reachable.
func New(cfg Config, doer transport.Doer, status StatusSource, opts ...Option) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = resilience.DefaultAttemptTimeout
	}
	if cfg.Retry == nil {
		cfg.Retry = resilience.DefaultRetry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:        cfg,
		doer:       doer,
		status:     status,
		logger:     observe.NopLogger(),
		metrics:    observe.NoopMetrics(),
		slots:      resilience.NewSlots(cfg.MaxConcurrent),
		processing: make(map[string]*Item),
		ctx:        ctx,
		cancel:     cancel,
	}
	q.retry.Store(cfg.Retry)

	for _, opt := range opts {
		opt(q)
	}
	if q.mw != nil {
		q.doer = q.mw.Wrap("queue", q.doer)
		q.metrics = q.mw.Metrics()
	}
	q.logger = q.logger.With(observe.Component("queue"))

	return q
}

// RetryPolicy returns the policy applied to failed deliveries.
func (q *Queue) RetryPolicy() *resilience.Retry {
	return q.retry.Load()
}

// SetRetryPolicy replaces the policy. Items already waiting keep their
// MaxRetries.
func (q *Queue) SetRetryPolicy(r *resilience.Retry) {
	if r != nil {
		q.retry.Store(r)
	}
}

// Enqueue adds req to the queue and returns the assigned item ID. The ID is
// returned even if the item is immediately evicted by overflow.
func (q *Queue) Enqueue(req transport.Request, opts EnqueueOptions) (string, error) {
	maxRetries := opts.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = q.RetryPolicy().MaxRetries()
	case maxRetries < 0:
		maxRetries = 0
	}

	item := &Item{
		ID:         uuid.NewString(),
		Request:    req.Clone(),
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
		Priority:   opts.Priority,
		Metadata:   opts.Metadata,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.seq++
	item.seq = q.seq
	q.insert(item)
	evicted := q.enforceLimit()
	depth := len(q.items)
	q.mu.Unlock()

	ctx := context.Background()
	q.metrics.RecordQueueEvent(ctx, observe.QueueEnqueued)
	q.metrics.RecordQueueDepth(ctx, depth)
	q.logger.Debug(ctx, "item enqueued",
		observe.Field{Key: "item_id", Value: item.ID},
		observe.Field{Key: "priority", Value: item.Priority.String()},
		observe.Field{Key: "queue_size", Value: depth},
	)
	q.reportEvicted(evicted)

	return item.ID, nil
}

// insert places item by band. Callers hold q.mu.
func (q *Queue) insert(item *Item) {
	if item.Priority == PriorityHigh {
		q.items = append([]*Item{item}, q.items...)
		return
	}
	q.items = append(q.items, item)
}

// pushFront returns a retried item to the head. Callers hold q.mu.
func (q *Queue) pushFront(item *Item) {
	q.items = append([]*Item{item}, q.items...)
}

// enforceLimit evicts until the queue fits MaxSize and returns the evicted
// items. Callers hold q.mu.
func (q *Queue) enforceLimit() []*Item {
	var evicted []*Item
	for len(q.items) > q.cfg.MaxSize {
		victim := q.victim()
		evicted = append(evicted, q.items[victim])
		q.items = append(q.items[:victim], q.items[victim+1:]...)
		q.evicted++
	}
	return evicted
}

// victim returns the index of the oldest item in the lowest band present.
func (q *Queue) victim() int {
	best := 0
	for i, it := range q.items[1:] {
		b := q.items[best]
		if it.Priority.rank() < b.Priority.rank() ||
			(it.Priority.rank() == b.Priority.rank() && it.seq < b.seq) {
			best = i + 1
		}
	}
	return best
}

func (q *Queue) reportEvicted(items []*Item) {
	ctx := context.Background()
	for _, it := range items {
		q.metrics.RecordQueueEvent(ctx, observe.QueueEvicted)
		q.logger.Debug(ctx, "item evicted",
			observe.Field{Key: "item_id", Value: it.ID},
			observe.Field{Key: "priority", Value: it.Priority.String()},
		)
		q.emit(Outcome{Item: it.clone(), Kind: Evicted})
	}
}

// Start runs Drain every FlushInterval until ctx is done or Close is
// called. Calling Start more than once has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.closed || q.loopDone != nil {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	q.loopCancel = cancel
	q.loopDone = make(chan struct{})
	done := q.loopDone
	q.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(q.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.Drain(ctx)
			}
		}
	}()
}

// Drain dispatches waiting items up to the free concurrency. It does
// nothing while the backend is unreachable. Dispatched attempts outlive ctx;
// ctx only stops further dispatching.
func (q *Queue) Drain(ctx context.Context) {
	if q.status != nil && !q.status.Current().Reachable() {
		return
	}

	for ctx.Err() == nil {
		q.mu.Lock()
		if q.closed || len(q.items) == 0 || !q.slots.TryAcquire() {
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.processing[item.ID] = item
		depth := len(q.items)
		q.wg.Add(1)
		q.mu.Unlock()

		q.metrics.RecordQueueDepth(ctx, depth)
		go q.dispatch(item)
	}
}

func (q *Queue) dispatch(item *Item) {
	defer q.wg.Done()

	attemptCtx := observe.WithItemID(context.Background(), item.ID)
	resp, err := resilience.Call(attemptCtx, q.cfg.RequestTimeout, func(ctx context.Context) (*transport.Response, error) {
		return q.doer.Do(ctx, item.Request)
	})

	q.mu.Lock()
	delete(q.processing, item.ID)
	q.slots.Release()

	if err == nil && resp.OK() {
		q.delivered++
		q.mu.Unlock()

		q.metrics.RecordQueueEvent(attemptCtx, observe.QueueDelivered)
		q.logger.Debug(attemptCtx, "item delivered",
			observe.Field{Key: "item_id", Value: item.ID},
			observe.Field{Key: "status", Value: resp.StatusCode},
		)
		q.emit(Outcome{Item: item.clone(), Kind: Delivered, Response: resp})
		return
	}

	policy := q.RetryPolicy()
	retryable := policy.ShouldRetry(resp.Code(), err)
	if !retryable || item.RetryCount >= item.MaxRetries {
		q.dropped++
		q.mu.Unlock()
		if retryable {
			err = &resilience.ExhaustedError{Attempts: item.RetryCount + 1, StatusCode: resp.Code(), Err: err}
		}
		q.drop(item, resp, err)
		return
	}

	delay := policy.Backoff(item.RetryCount)
	item.RetryCount++
	q.retried++
	q.waiting++
	q.mu.Unlock()

	q.metrics.RecordQueueEvent(attemptCtx, observe.QueueRetried)
	q.logger.Debug(attemptCtx, "item scheduled for retry",
		observe.Field{Key: "item_id", Value: item.ID},
		observe.Field{Key: "retry", Value: item.RetryCount},
		observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
	)

	// Close cuts the wait short; the item still returns to the queue.
	_ = resilience.Sleep(q.ctx, delay)

	q.mu.Lock()
	q.waiting--
	q.pushFront(item)
	evicted := q.enforceLimit()
	q.mu.Unlock()

	q.reportEvicted(evicted)
}

func (q *Queue) drop(item *Item, resp *transport.Response, err error) {
	if err == nil {
		err = &resilience.StatusError{StatusCode: resp.Code()}
	}

	ctx := context.Background()
	q.metrics.RecordQueueEvent(ctx, observe.QueueDropped)
	q.logger.Warn(ctx, "item dropped",
		observe.Field{Key: "item_id", Value: item.ID},
		observe.Field{Key: "retries", Value: item.RetryCount},
		observe.Field{Key: "error", Value: err.Error()},
	)
	q.emit(Outcome{Item: item.clone(), Kind: Dropped, Response: resp, Err: err})
}

func (q *Queue) emit(o Outcome) {
	if q.cfg.OnOutcome == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error(context.Background(), "outcome hook panicked",
				observe.Field{Key: "item_id", Value: o.Item.ID},
			)
		}
	}()
	q.cfg.OnOutcome(o)
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the waiting items in dispatch order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	for i, it := range q.items {
		out[i] = it.clone()
	}
	return out
}

// Stats returns current queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		QueueSize:       len(q.items),
		ProcessingCount: len(q.processing),
		Waiting:         q.waiting,
		Delivered:       q.delivered,
		Retried:         q.retried,
		Dropped:         q.dropped,
		Evicted:         q.evicted,
	}
}

// Close stops the drain timer, cuts backoff waits short and waits for
// in-flight attempts to finish. Items still queued are kept and can be
// inspected with Items. Close is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	loopCancel, loopDone := q.loopCancel, q.loopDone
	q.mu.Unlock()

	if loopCancel != nil {
		loopCancel()
		<-loopDone
	}
	q.cancel()
	q.wg.Wait()
	return nil
}
