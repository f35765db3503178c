package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/netguard/transport"
)

// Middleware wraps a transport.Doer with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe Doer.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped Doer are recorded and propagated unchanged.
//   - Ownership: Requests and responses pass through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the recorder used by the middleware.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap instruments every attempt made through next. source names the
// component issuing the attempts.
func (m *Middleware) Wrap(source string, next transport.Doer) transport.Doer {
	logger := m.logger.With(Component(source))

	return transport.DoerFunc(func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		meta := RequestMeta{
			Source: source,
			Method: req.MethodOrDefault(),
			Target: req.Target,
			ItemID: ItemIDFromContext(ctx),
		}

		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		resp, err := next.Do(ctx, req)

		duration := time.Since(start)
		code := resp.Code()
		m.tracer.EndSpan(span, code, err)
		m.metrics.RecordAttempt(ctx, meta, code, duration, err)

		fields := []Field{
			{Key: "method", Value: meta.Method},
			{Key: "target", Value: meta.Target},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		if meta.ItemID != "" {
			fields = append(fields, Field{Key: "item_id", Value: meta.ItemID})
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Warn(ctx, "attempt failed", fields...)
		} else {
			fields = append(fields, Field{Key: "status", Value: code})
			logger.Debug(ctx, "attempt completed", fields...)
		}

		return resp, err
	})
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

type itemIDKey struct{}

// WithItemID tags ctx with a queue item ID so attempts can be correlated.
func WithItemID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, itemIDKey{}, id)
}

// ItemIDFromContext returns the queue item ID set by WithItemID.
func ItemIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(itemIDKey{}).(string)
	return id
}
