// Package observe provides the logging, tracing and metrics used across
// netguard.
//
// Logger is a small structured logging interface backed by zerolog.
// Sensitive keys (see RedactedFields) are replaced before output. Tracer and
// Metrics wrap OpenTelemetry; Middleware applies all three to every attempt
// made through a transport.Doer.
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "netguard",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	mw, err := observe.MiddlewareFromObserver(obs)
//	doer := mw.Wrap("gateway", httpDoer)
//
// Exporter construction lives in the exporters subpackage.
package observe
