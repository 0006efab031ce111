package config

import (
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/petclinic/internal/cache/directory"
	"goflare.io/petclinic/internal/retrier"
	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/serialization"
)

// unset marks a directory option that was never given.
const unset = -1

// MaxTTLSeconds is the largest TTL that still fits in a time.Duration.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Config is the configuration of the records core.
type Config struct {
	DirectoryConfig    DirectoryConfig
	ResilienceConfig   ResilienceConfig
	InvalidationConfig InvalidationConfig
	Serialization      serialization.Codec

	Logger *zap.Logger
	Tracer trace.Tracer
	Clock  directory.Clock
}

// DirectoryConfig sizes the staff directory cache. Both values are required.
type DirectoryConfig struct {
	TTLSeconds int
	MaxEntries int
	Coalesce   bool
}

// TTL returns TTLSeconds as a duration.
func (d DirectoryConfig) TTL() time.Duration {
	return time.Duration(d.TTLSeconds) * time.Second
}

// ResilienceConfig configures the record store decorator.
type ResilienceConfig struct {
	Enabled        bool
	CircuitBreaker gobreaker.Settings
	Retry          retrier.Settings
}

// InvalidationConfig enables the Redis invalidation bus when Client is set.
type InvalidationConfig struct {
	Client  redis.UniversalClient
	Channel string
}

// Option 函數類型
type Option func(*Config) error

// NewConfig builds a Config from options. Directory TTL and capacity have no
// defaults: leaving either out is a configuration error.
func NewConfig(options ...Option) (*Config, error) {
	jsonCodec, err := serialization.Lookup(serialization.JSONType)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DirectoryConfig: DirectoryConfig{
			TTLSeconds: unset,
			MaxEntries: unset,
		},
		ResilienceConfig: ResilienceConfig{
			Enabled: true,
			CircuitBreaker: gobreaker.Settings{
				Name:        "RecordStore",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			Retry: retrier.Settings{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    time.Second,
				Factor:      2,
				Jitter:      0.1,
				Strategy:    retrier.ExponentialBackoff,
			},
		},
		Serialization: jsonCodec,
		Logger:        zap.NewNop(),
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the directory settings.
func (c *Config) Validate() error {
	d := c.DirectoryConfig
	switch {
	case d.TTLSeconds == unset:
		return fmt.Errorf("%w: directory ttl seconds is required", models.ErrConfiguration)
	case d.TTLSeconds < 0:
		return fmt.Errorf("%w: directory ttl seconds must be >= 0, got %d", models.ErrConfiguration, d.TTLSeconds)
	case int64(d.TTLSeconds) > MaxTTLSeconds:
		return fmt.Errorf("%w: directory ttl seconds must be <= %d, got %d", models.ErrConfiguration, MaxTTLSeconds, d.TTLSeconds)
	case d.MaxEntries == unset:
		return fmt.Errorf("%w: directory max entries is required", models.ErrConfiguration)
	case d.MaxEntries < 1:
		return fmt.Errorf("%w: directory max entries must be >= 1, got %d", models.ErrConfiguration, d.MaxEntries)
	}
	return nil
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithTracer sets the tracer for loader and aggregator spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) error {
		c.Tracer = tracer
		return nil
	}
}

// WithClock replaces the directory cache time source.
func WithClock(clock directory.Clock) Option {
	return func(c *Config) error {
		c.Clock = clock
		return nil
	}
}

// WithDirectoryTTL sets how many seconds a cached listing stays fresh. 0 disables reuse.
func WithDirectoryTTL(seconds int) Option {
	return func(c *Config) error {
		if seconds < 0 {
			return fmt.Errorf("%w: directory ttl seconds must be >= 0, got %d", models.ErrConfiguration, seconds)
		}
		if int64(seconds) > MaxTTLSeconds {
			return fmt.Errorf("%w: directory ttl seconds must be <= %d, got %d", models.ErrConfiguration, MaxTTLSeconds, seconds)
		}
		c.DirectoryConfig.TTLSeconds = seconds
		return nil
	}
}

// WithMaxEntries sets the directory cache capacity.
func WithMaxEntries(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("%w: directory max entries must be >= 1, got %d", models.ErrConfiguration, n)
		}
		c.DirectoryConfig.MaxEntries = n
		return nil
	}
}

// WithCoalescing makes concurrent directory misses share one store call.
func WithCoalescing(enabled bool) Option {
	return func(c *Config) error {
		c.DirectoryConfig.Coalesce = enabled
		return nil
	}
}

// WithResilience toggles the retrying, circuit-breaking store decorator.
func WithResilience(enabled bool) Option {
	return func(c *Config) error {
		c.ResilienceConfig.Enabled = enabled
		return nil
	}
}

// WithCircuitBreaker replaces the breaker settings.
func WithCircuitBreaker(settings gobreaker.Settings) Option {
	return func(c *Config) error {
		c.ResilienceConfig.CircuitBreaker = settings
		return nil
	}
}

// WithRetry replaces the retry settings.
func WithRetry(settings retrier.Settings) Option {
	return func(c *Config) error {
		if _, err := retrier.New(settings); err != nil {
			return fmt.Errorf("%w: %w", models.ErrConfiguration, err)
		}
		c.ResilienceConfig.Retry = settings
		return nil
	}
}

// WithInvalidation enables the Redis invalidation bus.
func WithInvalidation(client redis.UniversalClient, channel string) Option {
	return func(c *Config) error {
		if client == nil {
			return fmt.Errorf("%w: invalidation requires a redis client", models.ErrConfiguration)
		}
		c.InvalidationConfig = InvalidationConfig{Client: client, Channel: channel}
		return nil
	}
}

// WithSerialization selects the invalidation event encoding ("json" or "gob").
func WithSerialization(typ string) Option {
	return func(c *Config) error {
		codec, err := serialization.Lookup(typ)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrConfiguration, err)
		}
		c.Serialization = codec
		return nil
	}
}
