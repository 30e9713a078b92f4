package cloudapi

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedlykit/internal/pkg/config"
	"feedlykit/internal/resilience/circuitbreaker"
	"feedlykit/internal/resilience/retry"
)

// Target selects which API deployment a client talks to.
type Target string

const (
	// Production is the public cloud API.
	Production Target = "production"
	// Sandbox is the developer sandbox, which has its own accounts and tokens.
	Sandbox Target = "sandbox"
)

// BaseURL returns the API root for the target.
func (t Target) BaseURL() string {
	if t == Sandbox {
		return "https://sandbox7.feedly.com"
	}
	return "https://cloud.feedly.com"
}

const (
	// MaxBatchSize is the largest id list the API accepts in one .mget call.
	MaxBatchSize = 1000

	defaultUserAgent = "feedlykit/1.0"
)

// Config holds API client configuration.
type Config struct {
	// Target chooses the production or sandbox deployment.
	Target Target

	// BaseURL overrides the target's URL, e.g. to point at a local fake server.
	BaseURL string

	// AccessToken is the OAuth bearer token. It can also be set later with SetAccessToken.
	AccessToken string

	// Timeout bounds a single HTTP attempt, not the retried call.
	Timeout time.Duration

	// RateLimit is the sustained request rate in requests per second. 0 disables limiting.
	RateLimit float64

	// RateBurst is the token bucket size.
	RateBurst int

	// Retry controls retries of idempotent calls.
	Retry retry.Config

	// Breaker controls the circuit breaker shared by all calls of one client.
	Breaker circuitbreaker.Config

	// EntryCacheSize is the number of entries kept by FetchEntry. 0 disables the cache.
	EntryCacheSize int

	// BatchConcurrency is the number of .mget batches fetched in parallel.
	BatchConcurrency int

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Target:           Production,
		Timeout:          30 * time.Second,
		RateLimit:        4,
		RateBurst:        8,
		Retry:            retry.CloudAPIConfig(),
		Breaker:          circuitbreaker.CloudAPIConfig(),
		EntryCacheSize:   512,
		BatchConcurrency: 4,
		UserAgent:        defaultUserAgent,
	}
}

// Endpoint returns the base URL requests are sent to.
func (c *Config) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return c.Target.BaseURL()
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Target != Production && c.Target != Sandbox {
		errs = append(errs, fmt.Errorf("target must be %q or %q, got %q", Production, Sandbox, c.Target))
	}
	if c.BaseURL != "" {
		if err := config.ValidateBaseURL(c.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if err := config.ValidatePositiveDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate burst must be at least 1 when rate limiting, got %d", c.RateBurst))
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if err := c.Breaker.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("breaker: %w", err))
	}
	if c.EntryCacheSize < 0 {
		errs = append(errs, fmt.Errorf("entry cache size must not be negative, got %d", c.EntryCacheSize))
	}
	if err := config.ValidateIntRange(c.BatchConcurrency, 1, 32); err != nil {
		errs = append(errs, fmt.Errorf("batch concurrency: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid cloud API config: %w", errors.Join(errs...))
	}
	return nil
}

// LoadConfigFromEnv builds a Config from DefaultConfig and the FEEDLY_* environment variables.
//
// Invalid values fall back to their default and are logged at Warn level (and counted on
// metrics when it is non-nil); only a configuration that is still invalid afterwards is an error.
//
// Environment variables:
//   - FEEDLY_TARGET: production or sandbox
//   - FEEDLY_BASE_URL: overrides the target URL
//   - FEEDLY_ACCESS_TOKEN: bearer token
//   - FEEDLY_TIMEOUT: per-attempt timeout, e.g. "30s"
//   - FEEDLY_RATE_LIMIT, FEEDLY_RATE_BURST: token bucket settings
//   - FEEDLY_MAX_RETRIES: total attempts for idempotent calls
//   - FEEDLY_ENTRY_CACHE_SIZE: FetchEntry cache capacity
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) (Config, error) {
	cfg := DefaultConfig()

	target := config.LoadEnvWithFallback("FEEDLY_TARGET", string(cfg.Target),
		config.OneOf(string(Production), string(Sandbox))).Report(logger, metrics, "target")
	cfg.Target = Target(strings.ToLower(target))

	cfg.BaseURL = config.LoadEnvWithFallback("FEEDLY_BASE_URL", "", config.ValidateBaseURL).
		Report(logger, metrics, "base_url")
	cfg.AccessToken = config.LoadEnvString("FEEDLY_ACCESS_TOKEN", "")

	cfg.Timeout = config.LoadEnvDuration("FEEDLY_TIMEOUT", cfg.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 5*time.Minute)
	}).Report(logger, metrics, "timeout")

	cfg.RateLimit = config.LoadEnvFloat("FEEDLY_RATE_LIMIT", cfg.RateLimit, func(v float64) error {
		return config.ValidateFloatRange(v, 0, 100)
	}).Report(logger, metrics, "rate_limit")

	cfg.RateBurst = config.LoadEnvInt("FEEDLY_RATE_BURST", cfg.RateBurst, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	}).Report(logger, metrics, "rate_burst")

	cfg.Retry.MaxAttempts = config.LoadEnvInt("FEEDLY_MAX_RETRIES", cfg.Retry.MaxAttempts, func(v int) error {
		return config.ValidateIntRange(v, 1, 10)
	}).Report(logger, metrics, "max_retries")

	cfg.EntryCacheSize = config.LoadEnvInt("FEEDLY_ENTRY_CACHE_SIZE", cfg.EntryCacheSize, func(v int) error {
		return config.ValidateIntRange(v, 0, 100000)
	}).Report(logger, metrics, "entry_cache_size")

	if metrics != nil {
		metrics.RecordLoadTimestamp()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
