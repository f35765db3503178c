package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer() (*tracerImpl, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &tracerImpl{tracer: tp.Tracer("test")}, recorder
}

func attrMap(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	m := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestRequestMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta RequestMeta
		want string
	}{
		{RequestMeta{Source: "gateway", Method: "POST"}, "netguard.gateway POST"},
		{RequestMeta{Source: "queue"}, "netguard.queue GET"},
		{RequestMeta{}, "netguard.request GET"},
	}

	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func TestTracer_SpanAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer()
	meta := RequestMeta{Source: "queue", Method: "PUT", Target: "/media/1", ItemID: "item-1"}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, 201, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]

	if s.Name() != "netguard.queue PUT" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", s.SpanKind())
	}

	attrs := attrMap(s)
	if v := attrs["url.full"]; v.AsString() != "/media/1" {
		t.Errorf("url.full = %v", v)
	}
	if v := attrs["netguard.queue.item_id"]; v.AsString() != "item-1" {
		t.Errorf("item_id = %v", v)
	}
	if v := attrs["http.response.status_code"]; v.AsInt64() != 201 {
		t.Errorf("status_code = %v", v)
	}
	if v := attrs["netguard.error"]; v.AsBool() {
		t.Error("netguard.error should be false")
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
}

func TestTracer_ErrorRecording(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), RequestMeta{Source: "gateway"})
	tr.EndSpan(span, 0, errors.New("connection reset"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "connection reset" {
		t.Errorf("status = %+v", s.Status())
	}
	if !attrMap(s)["netguard.error"].AsBool() {
		t.Error("netguard.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event")
	}
}

func TestTracer_ServerErrorMarksSpan(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), RequestMeta{Source: "gateway"})
	tr.EndSpan(span, 503, nil)

	if got := recorder.Ended()[0].Status().Code; got != codes.Error {
		t.Errorf("status = %v, want Error", got)
	}
}

func TestTracer_ContextPropagation(t *testing.T) {
	tr, recorder := newRecordingTracer()

	ctx, parent := tr.StartSpan(context.Background(), RequestMeta{Source: "gateway"})
	_, child := tr.StartSpan(ctx, RequestMeta{Source: "queue"})
	tr.EndSpan(child, 200, nil)
	tr.EndSpan(parent, 200, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("child span should have the parent span as parent")
	}
}

func TestNoopTracer_NoPanic(t *testing.T) {
	tr := NoopTracer()
	_, span := tr.StartSpan(context.Background(), RequestMeta{})
	tr.EndSpan(span, 500, errors.New("x"))
}
