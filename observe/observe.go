package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/netguard/observe/exporters"
)

// Config selects which telemetry signals are produced and where they go.
// A disabled section yields a no-op implementation.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig configures spans.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // none, stdout, otlp or jaeger
	SamplePct float64 // fraction of traces kept, in [0, 1]
}

// MetricsConfig configures instruments.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // none, stdout, otlp or prometheus

	// Registerer receives the collector of the prometheus exporter.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// LoggingConfig configures the Logger.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug, info, warn or error
	Format  string // json or console

	// Writer receives log output.
	// Default: os.Stderr
	Writer io.Writer
}

// Validate reports the first invalid setting of an enabled section.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}

	checks := []struct {
		enabled bool
		value   string
		allowed []string
		err     error
	}{
		{c.Tracing.Enabled, c.Tracing.Exporter, tracingExporters, ErrInvalidTracingExporter},
		{c.Metrics.Enabled, c.Metrics.Exporter, metricsExporters, ErrInvalidMetricsExporter},
		{c.Logging.Enabled, c.Logging.Level, logLevels, ErrInvalidLogLevel},
		{c.Logging.Enabled, c.Logging.Format, logFormats, ErrInvalidLogFormat},
	}
	for _, chk := range checks {
		if chk.enabled && !slices.Contains(chk.allowed, chk.value) {
			return fmt.Errorf("%w: %q", chk.err, chk.value)
		}
	}

	if c.Tracing.Enabled && (c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1) {
		return fmt.Errorf("%w: %g", ErrInvalidSamplePct, c.Tracing.SamplePct)
	}
	return nil
}

// Observer owns the telemetry providers of a process.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Shutdown flushes pending spans and metrics, honors ctx and joins the
//     errors of every provider.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

// Logger is the structured logger used across netguard.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Logging is best effort and never panics.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Component returns the field used to tag a logger with its owner.
func Component(name string) Field {
	return Field{Key: "component", Value: name}
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	shutdowns []func(context.Context) error
}

// NewObserver validates cfg and builds the enabled providers. Enabled
// providers are also installed as the otel globals.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Tracing, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		o.tracer = tp.Tracer(cfg.ServiceName)
		o.shutdowns = append(o.shutdowns, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		mp, err := newMeterProvider(ctx, cfg.Metrics, res)
		if err != nil {
			return nil, errors.Join(err, o.Shutdown(ctx))
		}
		otel.SetMeterProvider(mp)
		o.meter = mp.Meter(cfg.ServiceName)
		o.shutdowns = append(o.shutdowns, mp.Shutdown)
	}

	if cfg.Logging.Enabled {
		o.logger = newConfiguredLogger(cfg.Logging).With(Field{Key: "service", Value: cfg.ServiceName})
	}

	return o, nil
}

func newConfiguredLogger(cfg LoggingConfig) Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format == "console" {
		return NewConsoleLogger(cfg.Level, w)
	}
	return NewLoggerWithWriter(cfg.Level, w)
}

func newTracerProvider(ctx context.Context, cfg TracingConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := exporters.NewTracingExporter(ctx, cfg.Exporter)
	if err != nil {
		return nil, fmt.Errorf("observe: tracing: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplePct)),
	}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func sampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= 1:
		return sdktrace.AlwaysSample()
	case pct <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(pct))
	}
}

func newMeterProvider(ctx context.Context, cfg MetricsConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var opts []exporters.Option
	if cfg.Registerer != nil {
		opts = append(opts, exporters.WithRegisterer(cfg.Registerer))
	}
	reader, err := exporters.NewMetricsReader(ctx, cfg.Exporter, opts...)
	if err != nil {
		return nil, fmt.Errorf("observe: metrics: %w", err)
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(mpOpts...), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range o.shutdowns {
		errs = append(errs, shutdown(ctx))
	}
	return errors.Join(errs...)
}
