package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonwraymond/netguard/resilience"
	"github.com/jonwraymond/netguard/secret"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "NETGUARD"

// Errors returned by Load and Validate.
var (
	ErrReadFile = errors.New("config: read file")
	ErrInvalid  = errors.New("config: invalid configuration")
)

var configValidator = validator.New()

type options struct {
	configFile string
	envFile    string
	resolver   *secret.Resolver
}

// Option customizes Load.
type Option func(*options)

// WithConfigFile reads path instead of searching for netguard.yaml in the
// working directory, $HOME/.config/netguard and /etc/netguard.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithEnvFile reads path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithResolver sets the resolver for secret references.
// Default: env and file providers, strict
func WithResolver(r *secret.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// Load reads, resolves and validates the configuration.
func Load(ctx context.Context, opts ...Option) (*Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o.configFile); err != nil {
		return nil, err
	}

	dotenv, err := readEnvFile(o.envFile)
	if err != nil {
		return nil, err
	}
	// The process environment takes precedence over .env values.
	for _, key := range v.AllKeys() {
		name := envName(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if val, ok := dotenv[name]; ok {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	resolver := o.resolver
	if resolver == nil {
		resolver = secret.NewResolver(true,
			secret.EnvProvider{Lookup: lookupWith(dotenv)},
			secret.FileProvider{},
		)
	}
	if err := resolveSecrets(ctx, &cfg, resolver); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	r := cfg.Recovery
	if r.Retry.BaseDelay > r.Retry.MaxDelay {
		return fmt.Errorf("%w: retry.base_delay (%v) exceeds retry.max_delay (%v)", ErrInvalid, r.Retry.BaseDelay, r.Retry.MaxDelay)
	}
	if r.Probe.DegradedThreshold >= r.Probe.Timeout {
		return fmt.Errorf("%w: probe.degraded_threshold (%v) must be below probe.timeout (%v)", ErrInvalid, r.Probe.DegradedThreshold, r.Probe.Timeout)
	}
	if c := cfg.Cache; c.MaxTTL > 0 && c.DefaultTTL > c.MaxTTL {
		return fmt.Errorf("%w: cache.default_ttl (%v) exceeds cache.max_ttl (%v)", ErrInvalid, c.DefaultTTL, c.MaxTTL)
	}
	if cfg.Server.RequireAuth && !cfg.Auth.Enabled {
		return fmt.Errorf("%w: server.require_auth needs auth.enabled", ErrInvalid)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.retryable_status_codes", resilience.DefaultRetryableStatusCodes)
	v.SetDefault("retry.retryable_errors", resilience.DefaultRetryableErrors)
	v.SetDefault("retry.jitter", 0.0)

	v.SetDefault("queue.max_size", 100)
	v.SetDefault("queue.flush_interval", "5s")
	v.SetDefault("queue.max_concurrent", 3)
	v.SetDefault("queue.request_timeout", "30s")

	v.SetDefault("probe.url", "")
	v.SetDefault("probe.fallback_urls", []string{})
	v.SetDefault("probe.method", "HEAD")
	v.SetDefault("probe.check_interval", "30s")
	v.SetDefault("probe.timeout", "10s")
	v.SetDefault("probe.degraded_threshold", "5s")
	v.SetDefault("probe.interfaces", true)

	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.user_agent", "netguard")
	v.SetDefault("backend.max_body_bytes", 10<<20)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.max_ttl", "1h")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "netguard")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.subject", "")
	v.SetDefault("auth.ttl", "5m")

	v.SetDefault("observe.service_name", "netguard")
	v.SetDefault("observe.version", "")
	v.SetDefault("observe.tracing", false)
	v.SetDefault("observe.trace_exporter", "none")
	v.SetDefault("observe.sample_pct", 1.0)
	v.SetDefault("observe.metrics", false)
	v.SetDefault("observe.metrics_exporter", "none")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.require_auth", false)
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrReadFile, path, err)
		}
		return nil
	}

	v.SetConfigName("netguard")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/netguard")
	v.AddConfigPath("/etc/netguard")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("%w: %w", ErrReadFile, err)
		}
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFile, path, err)
	}
	return vals, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func lookupWith(dotenv map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok
	}
}

func resolveSecrets(ctx context.Context, cfg *Config, r *secret.Resolver) error {
	if secret.IsRef(cfg.Auth.SigningKey) {
		key, err := r.ResolveValue(ctx, cfg.Auth.SigningKey)
		if err != nil {
			return fmt.Errorf("config: auth.signing_key: %w", err)
		}
		cfg.Auth.SigningKey = key
	}

	headers, err := r.ResolveMap(ctx, cfg.Backend.Headers)
	if err != nil {
		return fmt.Errorf("config: backend.headers: %w", err)
	}
	cfg.Backend.Headers = headers
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
