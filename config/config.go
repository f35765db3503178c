package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/netguard/auth"
	"github.com/jonwraymond/netguard/cache"
	"github.com/jonwraymond/netguard/health"
	"github.com/jonwraymond/netguard/observe"
	"github.com/jonwraymond/netguard/queue"
	"github.com/jonwraymond/netguard/resilience"
	"github.com/jonwraymond/netguard/transport"
)

// Config is the complete netguard configuration.
type Config struct {
	Recovery RecoveryConfig `mapstructure:",squash"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Observe  ObserveConfig  `mapstructure:"observe"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
}

// RecoveryConfig groups the retry, queue and probe settings.
type RecoveryConfig struct {
	Retry RetryConfig `mapstructure:"retry"`
	Queue QueueConfig `mapstructure:"queue"`
	Probe ProbeConfig `mapstructure:"probe"`
}

// RetryConfig mirrors resilience.RetryConfig.
type RetryConfig struct {
	MaxRetries           int           `mapstructure:"max_retries" validate:"min=-1,max=20"`
	BaseDelay            time.Duration `mapstructure:"base_delay" validate:"min=1ms"`
	MaxDelay             time.Duration `mapstructure:"max_delay" validate:"min=1ms"`
	Multiplier           float64       `mapstructure:"multiplier" validate:"min=1"`
	RetryableStatusCodes []int         `mapstructure:"retryable_status_codes" validate:"dive,min=100,max=599"`
	RetryableErrors      []string      `mapstructure:"retryable_errors"`
	Jitter               float64       `mapstructure:"jitter" validate:"min=0,max=1"`
}

// QueueConfig mirrors queue.Config.
type QueueConfig struct {
	MaxSize        int           `mapstructure:"max_size" validate:"min=1"`
	FlushInterval  time.Duration `mapstructure:"flush_interval" validate:"min=10ms"`
	MaxConcurrent  int           `mapstructure:"max_concurrent" validate:"min=1"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1ms"`
}

// ProbeConfig configures the liveness probe.
type ProbeConfig struct {
	// URL is the liveness endpoint. Empty disables probing.
	URL               string        `mapstructure:"url" validate:"omitempty,url"`
	FallbackURLs      []string      `mapstructure:"fallback_urls" validate:"dive,url"`
	Method            string        `mapstructure:"method" validate:"oneof=HEAD GET"`
	CheckInterval     time.Duration `mapstructure:"check_interval" validate:"min=100ms"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=1ms"`
	DegradedThreshold time.Duration `mapstructure:"degraded_threshold" validate:"min=1ms"`

	// Interfaces consults local network interfaces as a platform signal.
	Interfaces bool `mapstructure:"interfaces"`
}

// BackendConfig describes the remote backend.
type BackendConfig struct {
	BaseURL      string            `mapstructure:"base_url" validate:"omitempty,url"`
	UserAgent    string            `mapstructure:"user_agent"`
	MaxBodyBytes int64             `mapstructure:"max_body_bytes" validate:"min=0"`
	Headers      map[string]string `mapstructure:"headers"`
}

// CacheConfig configures the offline read cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxEntries int           `mapstructure:"max_entries" validate:"min=0"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" validate:"min=0"`
	MaxTTL     time.Duration `mapstructure:"max_ttl" validate:"min=0"`
}

// AuthConfig configures bearer tokens for outbound requests and the
// optional check on the status server.
type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SigningKey string        `mapstructure:"signing_key" validate:"required_if=Enabled true"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	Subject    string        `mapstructure:"subject"`
	TTL        time.Duration `mapstructure:"ttl" validate:"min=1s"`
}

// ObserveConfig configures tracing and metrics.
type ObserveConfig struct {
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	Version     string  `mapstructure:"version"`
	Tracing     bool    `mapstructure:"tracing"`
	TraceExport string  `mapstructure:"trace_exporter" validate:"oneof=otlp jaeger stdout none"`
	SamplePct   float64 `mapstructure:"sample_pct" validate:"min=0,max=1"`
	Metrics     bool    `mapstructure:"metrics"`
	MetricsExp  string  `mapstructure:"metrics_exporter" validate:"oneof=otlp prometheus stdout none"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the status server of the serve command.
type ServerConfig struct {
	Addr        string `mapstructure:"addr" validate:"required,hostname_port"`
	RequireAuth bool   `mapstructure:"require_auth"`
}

// RetryPolicy builds the retry policy. Loaded values already carry their
// defaults, so a configured max_retries of 0 disables retries.
func (c RecoveryConfig) RetryPolicy() *resilience.Retry {
	maxRetries := c.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	return resilience.NewRetry(resilience.RetryConfig{
		MaxRetries:           maxRetries,
		BaseDelay:            c.Retry.BaseDelay,
		MaxDelay:             c.Retry.MaxDelay,
		Multiplier:           c.Retry.Multiplier,
		RetryableStatusCodes: c.Retry.RetryableStatusCodes,
		RetryableErrors:      c.Retry.RetryableErrors,
		Jitter:               c.Retry.Jitter,
	})
}

// QueueConfig builds a queue configuration sharing RetryPolicy.
func (c RecoveryConfig) QueueConfig() queue.Config {
	return queue.Config{
		MaxSize:        c.Queue.MaxSize,
		FlushInterval:  c.Queue.FlushInterval,
		MaxConcurrent:  c.Queue.MaxConcurrent,
		RequestTimeout: c.Queue.RequestTimeout,
		Retry:          c.RetryPolicy(),
	}
}

// TrackerConfig builds a tracker configuration. The prober is nil when no
// probe URL is configured. With fallback URLs the backend counts as reachable
// while any endpoint answers. A nil client uses http.DefaultClient.
func (c RecoveryConfig) TrackerConfig(client *http.Client) health.TrackerConfig {
	tc := health.TrackerConfig{
		CheckInterval:     c.Probe.CheckInterval,
		Timeout:           c.Probe.Timeout,
		DegradedThreshold: c.Probe.DegradedThreshold,
	}
	if c.Probe.Interfaces {
		tc.Connectivity = health.InterfaceConnectivity{}
	}
	if c.Probe.URL == "" {
		return tc
	}

	primary := &health.HTTPProber{URL: c.Probe.URL, Method: c.Probe.Method, Client: client}
	if len(c.Probe.FallbackURLs) == 0 {
		tc.Prober = primary
		return tc
	}
	agg := health.NewAggregator(health.AggregatorConfig{Timeout: c.Probe.Timeout, Mode: health.RequireAny})
	agg.Register("primary", primary)
	for i, u := range c.Probe.FallbackURLs {
		agg.Register(fmt.Sprintf("fallback-%d", i+1), &health.HTTPProber{URL: u, Method: c.Probe.Method, Client: client})
	}
	tc.Prober = agg
	return tc
}

// HTTPConfig builds the backend doer configuration.
func (c BackendConfig) HTTPConfig() transport.HTTPConfig {
	hc := transport.HTTPConfig{
		BaseURL:      c.BaseURL,
		MaxBodyBytes: c.MaxBodyBytes,
		UserAgent:    c.UserAgent,
	}
	if len(c.Headers) > 0 {
		hc.Header = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			hc.Header.Set(k, v)
		}
	}
	return hc
}

// Policy builds the cache policy.
func (c CacheConfig) Policy() cache.Policy {
	if !c.Enabled {
		return cache.NoCachePolicy()
	}
	return cache.Policy{DefaultTTL: c.DefaultTTL, MaxTTL: c.MaxTTL}
}

// JWTConfig builds the token source configuration.
func (c AuthConfig) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Subject:  c.Subject,
		TTL:      c.TTL,
	}
}

// ObserverConfig builds the observer configuration.
func (c Config) ObserverConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     c.Observe.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing,
			Exporter:  c.Observe.TraceExport,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics,
			Exporter: c.Observe.MetricsExp,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Log.Level,
			Format:  c.Log.Format,
		},
	}
}
