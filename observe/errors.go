package observe

import "errors"

var (
	ErrMissingServiceName     = errors.New("observe: missing service name")
	ErrInvalidSamplePct       = errors.New("observe: sample pct outside [0, 1]")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
	ErrInvalidLogFormat       = errors.New("observe: unknown log format")

	// ErrNilObserver is returned by MiddlewareFromObserver(nil).
	ErrNilObserver = errors.New("observe: nil observer")
)

// Accepted setting names. The empty string selects the default.
var (
	tracingExporters = []string{"", "none", "stdout", "otlp", "jaeger"}
	metricsExporters = []string{"", "none", "stdout", "otlp", "prometheus"}
	logLevels        = []string{"", "debug", "info", "warn", "error"}
	logFormats       = []string{"", "json", "console"}
)

// RedactedFields are log field keys whose values are never written.
// Matching ignores case. Request and response bodies are included because
// queued uploads may carry credentials.
var RedactedFields = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"password",
	"secret",
	"token",
	"api_key",
	"signing_key",
	"body",
}
