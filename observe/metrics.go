package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Queue events recorded by RecordQueueEvent.
const (
	QueueEnqueued  = "enqueued"
	QueueDelivered = "delivered"
	QueueRetried   = "retried"
	QueueDropped   = "dropped"
	QueueEvicted   = "evicted"
)

// Metrics records request, queue and reachability metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt records one network attempt. statusCode is 0 when the
	// attempt produced no response.
	RecordAttempt(ctx context.Context, meta RequestMeta, statusCode int, duration time.Duration, err error)

	// RecordQueueEvent counts a queue lifecycle event such as QueueEvicted.
	RecordQueueEvent(ctx context.Context, event string)

	// RecordQueueDepth records the number of waiting items.
	RecordQueueDepth(ctx context.Context, depth int)

	// RecordStatusChange counts a reachability transition.
	RecordStatusChange(ctx context.Context, from, to string)

	// RecordProbe records one reachability probe and its classification.
	RecordProbe(ctx context.Context, latency time.Duration, status string)
}

type metricsImpl struct {
	attempts      metric.Int64Counter
	attemptErrors metric.Int64Counter
	attemptHist   metric.Float64Histogram
	queueEvents   metric.Int64Counter
	queueDepth    metric.Int64Gauge
	statusChanges metric.Int64Counter
	probeHist     metric.Float64Histogram
}

// NewMetrics creates the netguard instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	attempts, err := meter.Int64Counter(
		"netguard.request.attempts",
		metric.WithDescription("Total number of network attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptErrors, err := meter.Int64Counter(
		"netguard.request.errors",
		metric.WithDescription("Attempts that failed without a response"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	attemptHist, err := meter.Float64Histogram(
		"netguard.request.duration_ms",
		metric.WithDescription("Attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queueEvents, err := meter.Int64Counter(
		"netguard.queue.events",
		metric.WithDescription("Queue lifecycle events by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Gauge(
		"netguard.queue.depth",
		metric.WithDescription("Items waiting in the offline queue"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	statusChanges, err := meter.Int64Counter(
		"netguard.status.changes",
		metric.WithDescription("Reachability status transitions"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	probeHist, err := meter.Float64Histogram(
		"netguard.probe.latency_ms",
		metric.WithDescription("Reachability probe latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		attempts:      attempts,
		attemptErrors: attemptErrors,
		attemptHist:   attemptHist,
		queueEvents:   queueEvents,
		queueDepth:    queueDepth,
		statusChanges: statusChanges,
		probeHist:     probeHist,
	}, nil
}

func (m *metricsImpl) RecordAttempt(ctx context.Context, meta RequestMeta, statusCode int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("netguard.source", meta.Source),
		attribute.String("http.request.method", meta.Method),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", statusCode))
	}
	opt := metric.WithAttributes(attrs...)

	m.attempts.Add(ctx, 1, opt)
	if err != nil {
		m.attemptErrors.Add(ctx, 1, opt)
	}
	m.attemptHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordQueueEvent(ctx context.Context, event string) {
	m.queueEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("netguard.queue.event", event)))
}

func (m *metricsImpl) RecordQueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}

func (m *metricsImpl) RecordStatusChange(ctx context.Context, from, to string) {
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("netguard.status.from", from),
		attribute.String("netguard.status.to", to),
	))
}

func (m *metricsImpl) RecordProbe(ctx context.Context, latency time.Duration, status string) {
	m.probeHist.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(attribute.String("netguard.status", status)))
}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordAttempt(context.Context, RequestMeta, int, time.Duration, error) {}
func (noopMetrics) RecordQueueEvent(context.Context, string)                              {}
func (noopMetrics) RecordQueueDepth(context.Context, int)                                 {}
func (noopMetrics) RecordStatusChange(context.Context, string, string)                    {}
func (noopMetrics) RecordProbe(context.Context, time.Duration, string)                    {}
