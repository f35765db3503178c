package observe

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta describes one outbound request for telemetry purposes.
type RequestMeta struct {
	Source string // Component issuing the request: gateway, queue or probe
	Method string // HTTP method
	Target string // Request target as given by the caller
	ItemID string // Queue item ID (optional)
}

// SpanName returns the deterministic span name for this request.
// Format: netguard.<source> <METHOD>
func (m RequestMeta) SpanName() string {
	source := m.Source
	if source == "" {
		source = "request"
	}
	method := m.Method
	if method == "" {
		method = http.MethodGet
	}
	return "netguard." + source + " " + method
}

// Tracer wraps OpenTelemetry tracing with per-attempt span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one attempt.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the response status and any error.
	EndSpan(span trace.Span, statusCode int, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("netguard.source", meta.Source),
		attribute.String("http.request.method", meta.Method),
		attribute.String("url.full", meta.Target),
		attribute.Bool("netguard.error", false),
	}
	if meta.ItemID != "" {
		attrs = append(attrs, attribute.String("netguard.queue.item_id", meta.ItemID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan marks the span as failed on a transport error or a 5xx status.
func (t *tracerImpl) EndSpan(span trace.Span, statusCode int, err error) {
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	}

	switch {
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("netguard.error", true))
		span.RecordError(err)
	case statusCode >= 500:
		span.SetStatus(codes.Error, http.StatusText(statusCode))
		span.SetAttributes(attribute.Bool("netguard.error", true))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NoopTracer returns a tracer whose spans record nothing.
func NoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

type noopTracer struct {
	noop trace.Tracer
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, statusCode int, err error) {
	span.End()
}
