package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/netguard/observe"
	"github.com/jonwraymond/netguard/resilience"
)

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// Prober checks the liveness endpoint. A nil Prober leaves the status to
	// platform signals alone.
	Prober Prober

	// CheckInterval is the period of background probes started by Start.
	// Default: 30 seconds
	CheckInterval time.Duration

	// Timeout bounds a single probe.
	// Default: 10 seconds
	Timeout time.Duration

	// DegradedThreshold is the latency above which a successful probe
	// classifies as degraded.
	// Default: 5 seconds
	DegradedThreshold time.Duration

	// Connectivity seeds the initial status and gates background probes.
	// Optional.
	Connectivity Connectivity
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(l observe.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WithMetrics sets the recorder for probes and status changes.
func WithMetrics(m observe.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	Status    Status
	Latency   time.Duration // latency of the last probe
	Err       error         // error of the last probe or signal, nil on success
	CheckedAt time.Time     // when the status was last evaluated
	Since     time.Time     // when the status last changed
}

// Listener is called with the previous and the new status on every change.
type Listener func(from, to Status)

type subscription struct {
	id uint64
	fn Listener
}

// Tracker maintains the current reachability status and notifies
// subscribers when it changes.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Listeners run outside the tracker lock, in subscription order. A
//     listener may call back into the tracker.
//   - A panicking listener is recovered and logged; the rest still run.
type Tracker struct {
	cfg     TrackerConfig
	logger  observe.Logger
	metrics observe.Metrics
	group   singleflight.Group

	mu     sync.Mutex
	snap   Snapshot
	subs   []subscription // replaced, never mutated in place
	nextID uint64
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker creates a tracker. The initial status comes from the
// Connectivity signal when it is known, otherwise StatusUnknown.
func NewTracker(cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DegradedThreshold <= 0 {
		cfg.DegradedThreshold = 5 * time.Second
	}

	t := &Tracker{
		cfg:     cfg,
		logger:  observe.NopLogger(),
		metrics: observe.NoopMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(observe.Component("tracker"))

	now := time.Now()
	t.snap = Snapshot{Status: StatusUnknown, CheckedAt: now, Since: now}
	if cfg.Connectivity != nil {
		if online, known := cfg.Connectivity.Online(); known {
			if online {
				t.snap.Status = StatusOnline
			} else {
				t.snap.Status = StatusOffline
				t.snap.Err = ErrNoConnectivity
			}
		}
	}

	return t
}

// Start runs an immediate check and then one every CheckInterval until ctx
// is done or Close is called. Calling Start more than once has no effect.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.closed || t.done != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(t.cfg.CheckInterval)
		defer ticker.Stop()

		for {
			t.tick(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (t *Tracker) tick(ctx context.Context) {
	if t.cfg.Connectivity != nil {
		if online, known := t.cfg.Connectivity.Online(); known && !online {
			t.record(StatusOffline, 0, ErrNoConnectivity)
			return
		}
	}
	t.Check(ctx)
}

// Check probes the backend now and returns the resulting status.
// Concurrent calls share one probe. Probe failures are reported through the
// status, never as an error. If ctx ends first the current status is
// returned and the shared probe still completes.
func (t *Tracker) Check(ctx context.Context) Status {
	if t.cfg.Prober == nil || t.isClosed() {
		return t.Current()
	}

	ch := t.group.DoChan("probe", func() (any, error) {
		return t.probe(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		return t.Current()
	}
}

func (t *Tracker) probe(ctx context.Context) Status {
	start := time.Now()
	_, err := resilience.Call(ctx, t.cfg.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.cfg.Prober.Probe(ctx)
	})
	latency := time.Since(start)

	if errors.Is(err, resilience.ErrTimeout) {
		err = fmt.Errorf("%w after %s", ErrProbeTimeout, t.cfg.Timeout)
	}

	status := t.classify(latency, err)
	t.metrics.RecordProbe(ctx, latency, status.String())
	t.record(status, latency, err)
	return status
}

func (t *Tracker) classify(latency time.Duration, err error) Status {
	switch {
	case err != nil:
		return StatusOffline
	case latency > t.cfg.DegradedThreshold:
		return StatusDegraded
	default:
		return StatusOnline
	}
}

// SetConnectivity applies a platform network signal. Losing the network
// marks the tracker offline at once; regaining it triggers a probe whose
// result becomes the new status.
func (t *Tracker) SetConnectivity(ctx context.Context, online bool) Status {
	if !online {
		t.record(StatusOffline, 0, ErrNoConnectivity)
		return StatusOffline
	}
	if t.cfg.Prober == nil {
		t.record(StatusOnline, 0, nil)
		return StatusOnline
	}
	return t.Check(ctx)
}

// Current returns the current status.
func (t *Tracker) Current() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.Status
}

// Snapshot returns the current status with details of the last evaluation.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Subscribe registers fn for status changes and returns a function that
// removes it. Unsubscribing twice is harmless. After Close, Subscribe
// registers nothing.
func (t *Tracker) Subscribe(fn Listener) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || fn == nil {
		return func() {}
	}

	t.nextID++
	id := t.nextID
	subs := make([]subscription, len(t.subs), len(t.subs)+1)
	copy(subs, t.subs)
	t.subs = append(subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { t.unsubscribe(id) })
	}
}

func (t *Tracker) unsubscribe(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := make([]subscription, 0, len(t.subs))
	for _, s := range t.subs {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	t.subs = subs
}

// Close stops background checks and drops all subscribers. It waits for
// the background loop to exit and is safe to call more than once.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.subs = nil
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (t *Tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// record stores an evaluation and notifies subscribers if the status changed.
func (t *Tracker) record(status Status, latency time.Duration, err error) {
	now := time.Now()

	t.mu.Lock()
	from := t.snap.Status
	t.snap.Latency = latency
	t.snap.Err = err
	t.snap.CheckedAt = now
	if from == status || t.closed {
		t.mu.Unlock()
		return
	}
	t.snap.Status = status
	t.snap.Since = now
	subs := t.subs
	t.mu.Unlock()

	ctx := context.Background()
	fields := []observe.Field{
		{Key: "from", Value: from.String()},
		{Key: "to", Value: status.String()},
		{Key: "latency_ms", Value: latency.Milliseconds()},
	}
	if err != nil {
		fields = append(fields, observe.Field{Key: "error", Value: err.Error()})
	}
	t.logger.Info(ctx, "status changed", fields...)
	t.metrics.RecordStatusChange(ctx, from.String(), status.String())

	for _, s := range subs {
		t.deliver(s, from, status)
	}
}

func (t *Tracker) deliver(s subscription, from, to Status) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(context.Background(), "status listener panicked",
				observe.Field{Key: "panic", Value: fmt.Sprint(r)},
				observe.Field{Key: "subscription", Value: s.id},
			)
		}
	}()
	s.fn(from, to)
}
