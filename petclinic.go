// Package petclinic is the records core of the clinic service: a cached
// staff directory and batched visit lookups over a record store.
package petclinic

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/petclinic/internal/cache/directory"
	"goflare.io/petclinic/internal/config"
	"goflare.io/petclinic/internal/invalidation"
	"goflare.io/petclinic/internal/loader"
	"goflare.io/petclinic/internal/resilience"
	"goflare.io/petclinic/internal/retrier"
	"goflare.io/petclinic/internal/visits"
	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/records"
)

// Option configures a Clinic.
type Option func(*config.Config) error

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return Option(config.WithLogger(logger))
}

// WithTracer sets the tracer for directory and visit spans.
func WithTracer(tracer trace.Tracer) Option {
	return Option(config.WithTracer(tracer))
}

// WithClock replaces the directory cache time source.
func WithClock(clock directory.Clock) Option {
	return Option(config.WithClock(clock))
}

// WithDirectoryTTL sets how many seconds a cached staff listing is reused.
func WithDirectoryTTL(seconds int) Option {
	return Option(config.WithDirectoryTTL(seconds))
}

// WithMaxEntries sets the directory cache capacity.
func WithMaxEntries(n int) Option {
	return Option(config.WithMaxEntries(n))
}

// WithCoalescing makes concurrent directory misses share one store call.
func WithCoalescing(enabled bool) Option {
	return Option(config.WithCoalescing(enabled))
}

// WithResilience toggles retries and the circuit breaker around the store.
func WithResilience(enabled bool) Option {
	return Option(config.WithResilience(enabled))
}

// WithCircuitBreaker replaces the store circuit breaker settings.
func WithCircuitBreaker(settings gobreaker.Settings) Option {
	return Option(config.WithCircuitBreaker(settings))
}

// WithRetry replaces the store retry settings.
func WithRetry(settings retrier.Settings) Option {
	return Option(config.WithRetry(settings))
}

// WithInvalidation shares directory invalidations with other instances over Redis.
func WithInvalidation(client redis.UniversalClient, channel string) Option {
	return Option(config.WithInvalidation(client, channel))
}

// WithSerialization selects the invalidation event encoding ("json" or "gob").
func WithSerialization(typ string) Option {
	return Option(config.WithSerialization(typ))
}

// Clinic serves the staff directory and visit history.
type Clinic struct {
	store     records.Store
	breaker   *resilience.Store
	directory *loader.Loader
	visits    *visits.Aggregator
	bus       *invalidation.Bus
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a Clinic over store. When invalidation is configured a
// subscriber runs until ctx is done or Close is called.
func New(ctx context.Context, store records.Store, opts ...Option) (*Clinic, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: record store is required", models.ErrConfiguration)
	}

	options := make([]config.Option, 0, len(opts))
	for _, opt := range opts {
		options = append(options, config.Option(opt))
	}
	cfg, err := config.NewConfig(options...)
	if err != nil {
		return nil, err
	}

	cacheOpts := []directory.Option{directory.WithLogger(cfg.Logger)}
	if cfg.Clock != nil {
		cacheOpts = append(cacheOpts, directory.WithClock(cfg.Clock))
	}
	cache, err := directory.New[string, []models.StaffEntry](
		cfg.DirectoryConfig.TTL(), cfg.DirectoryConfig.MaxEntries, cacheOpts...)
	if err != nil {
		return nil, err
	}

	c := &Clinic{store: store, logger: cfg.Logger}
	if cfg.ResilienceConfig.Enabled {
		r, err := retrier.New(cfg.ResilienceConfig.Retry)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
		}
		c.breaker = resilience.NewStore(store, cfg.ResilienceConfig.CircuitBreaker, r, cfg.Logger)
		c.store = c.breaker
	}

	c.directory = loader.New(cache, c.store,
		loader.WithLogger(cfg.Logger),
		loader.WithTracer(cfg.Tracer),
		loader.WithCoalescing(cfg.DirectoryConfig.Coalesce))
	c.visits = visits.New(c.store,
		visits.WithLogger(cfg.Logger),
		visits.WithTracer(cfg.Tracer))

	if client := cfg.InvalidationConfig.Client; client != nil {
		c.bus = invalidation.NewBus(client, cfg.InvalidationConfig.Channel, cfg.Serialization, cfg.Logger)
		runCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.bus.Run(runCtx, c.directory); err != nil {
				c.logger.Error("Directory invalidation subscriber stopped", zap.Error(err))
			}
		}()
	}

	cfg.Logger.Info("Clinic records core ready",
		zap.Int("directory_ttl_seconds", cfg.DirectoryConfig.TTLSeconds),
		zap.Int("directory_max_entries", cfg.DirectoryConfig.MaxEntries),
		zap.Bool("resilience", cfg.ResilienceConfig.Enabled),
		zap.Bool("invalidation", c.bus != nil))
	return c, nil
}

// ListStaff returns the staff directory, from cache when fresh.
func (c *Clinic) ListStaff(ctx context.Context) ([]models.StaffEntry, error) {
	return c.directory.ListStaff(ctx)
}

// ReadVisits returns the visits of one pet.
func (c *Clinic) ReadVisits(ctx context.Context, petID int) ([]models.VisitRecord, error) {
	return c.visits.Read(ctx, petID)
}

// ReadVisitsBatch returns the visits of every pet in petIDs with one store call.
func (c *Clinic) ReadVisitsBatch(ctx context.Context, petIDs []int) ([]models.VisitRecord, error) {
	return c.visits.ReadBatch(ctx, petIDs)
}

// InvalidateDirectory drops the cached staff listing here and, when
// invalidation is configured, on every other instance.
func (c *Clinic) InvalidateDirectory(ctx context.Context) error {
	c.directory.Invalidate()
	if c.bus == nil {
		return nil
	}
	return c.bus.Publish(ctx, invalidation.Event{Key: loader.AllStaffKey})
}

// ClearDirectory drops every cached directory query here and on peers.
func (c *Clinic) ClearDirectory(ctx context.Context) error {
	c.directory.Clear()
	if c.bus == nil {
		return nil
	}
	return c.bus.Publish(ctx, invalidation.Event{All: true})
}

// Stats returns the directory cache counters.
func (c *Clinic) Stats() models.Stats {
	return c.directory.Stats()
}

// BreakerState reports the store circuit breaker state. It is StateClosed
// when resilience is disabled.
func (c *Clinic) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// Close stops the invalidation subscriber. The record store is owned by the caller.
func (c *Clinic) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
	return nil
}
