package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return 0
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64] for %s, got %T", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_AttemptCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := RequestMeta{Source: "gateway", Method: "GET", Target: "/media"}

	m.RecordAttempt(context.Background(), meta, 200, 40*time.Millisecond, nil)
	m.RecordAttempt(context.Background(), meta, 0, 10*time.Millisecond, errors.New("connection refused"))

	rm := collect(t, reader)
	if got := sumValue(t, rm, "netguard.request.attempts"); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if got := sumValue(t, rm, "netguard.request.errors"); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}

	hist := findMetric(rm, "netguard.request.duration_ms")
	if hist == nil {
		t.Fatal("netguard.request.duration_ms metric not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	var count uint64
	for _, dp := range data.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
}

func TestMetrics_AttemptLabels(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordAttempt(context.Background(), RequestMeta{Source: "queue", Method: "POST"}, 503, time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "netguard.request.attempts")
	if found == nil {
		t.Fatal("netguard.request.attempts metric not found")
	}
	dp := found.Data.(metricdata.Sum[int64]).DataPoints[0]

	want := map[attribute.Key]attribute.Value{
		"netguard.source":           attribute.StringValue("queue"),
		"http.request.method":       attribute.StringValue("POST"),
		"http.response.status_code": attribute.IntValue(503),
	}
	for k, v := range want {
		got, ok := dp.Attributes.Value(k)
		if !ok || got != v {
			t.Errorf("attribute %s = %v, want %v", k, got, v)
		}
	}
}

func TestMetrics_QueueEventsAndDepth(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordQueueEvent(ctx, QueueEnqueued)
	m.RecordQueueEvent(ctx, QueueEnqueued)
	m.RecordQueueEvent(ctx, QueueEvicted)
	m.RecordQueueDepth(ctx, 7)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "netguard.queue.events"); got != 3 {
		t.Errorf("queue events = %d, want 3", got)
	}

	depth := findMetric(rm, "netguard.queue.depth")
	if depth == nil {
		t.Fatal("netguard.queue.depth metric not found")
	}
	gauge, ok := depth.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("expected Gauge[int64], got %T", depth.Data)
	}
	if gauge.DataPoints[0].Value != 7 {
		t.Errorf("depth = %d, want 7", gauge.DataPoints[0].Value)
	}
}

func TestMetrics_StatusAndProbe(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStatusChange(ctx, "online", "offline")
	m.RecordProbe(ctx, 120*time.Millisecond, "online")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "netguard.status.changes"); got != 1 {
		t.Errorf("status changes = %d, want 1", got)
	}
	if findMetric(rm, "netguard.probe.latency_ms") == nil {
		t.Error("netguard.probe.latency_ms metric not found")
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := RequestMeta{Source: "gateway", Method: "GET"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAttempt(context.Background(), meta, 200, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	if got := sumValue(t, collect(t, reader), "netguard.request.attempts"); got != 50 {
		t.Errorf("attempts = %d, want 50", got)
	}
}

func TestNoopMetrics_NoPanic(t *testing.T) {
	m := NoopMetrics()
	ctx := context.Background()
	m.RecordAttempt(ctx, RequestMeta{}, 0, 0, errors.New("x"))
	m.RecordQueueEvent(ctx, QueueDropped)
	m.RecordQueueDepth(ctx, 1)
	m.RecordStatusChange(ctx, "a", "b")
	m.RecordProbe(ctx, 0, "offline")
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
