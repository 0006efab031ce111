// Package loader implements the cache-aside read path of the staff directory.
package loader

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/petclinic/internal/cache/directory"
	"goflare.io/petclinic/models"
)

// AllStaffKey is the cache key of the "list all staff" query.
const AllStaffKey = "vets:all"

// StaffFinder loads the staff directory from the source of truth.
type StaffFinder interface {
	FindAllStaff(ctx context.Context) ([]models.StaffEntry, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTracer sets the tracer used for spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loader) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

// WithCoalescing makes concurrent misses share one store call. The shared
// call does not inherit any caller's cancellation; a caller whose ctx ends
// stops waiting and gets ctx.Err() while the others still receive the result.
func WithCoalescing(enabled bool) Option {
	return func(l *Loader) {
		if enabled {
			l.sf = &singleflight.Group{}
		} else {
			l.sf = nil
		}
	}
}

// Loader answers ListStaff from the cache and falls back to the store on a miss.
type Loader struct {
	cache   *directory.Cache[string, []models.StaffEntry]
	store   StaffFinder
	sf      *singleflight.Group
	tracer  trace.Tracer
	logger  *zap.Logger
	metrics *models.Metrics

	// generation is bumped by every invalidation. A load only publishes its
	// snapshot if no invalidation happened since it started.
	generation *atomic.Uint64
}

// New creates a Loader over cache and store.
func New(cache *directory.Cache[string, []models.StaffEntry], store StaffFinder, opts ...Option) *Loader {
	l := &Loader{
		cache:   cache,
		store:   store,
		tracer:  otel.Tracer("petclinic/directory"),
		logger:  zap.NewNop(),
		metrics: cache.Metrics(),

		generation: atomic.NewUint64(0),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListStaff returns the staff directory. The returned slice is the caller's
// to modify; the cached snapshot is never shared.
func (l *Loader) ListStaff(ctx context.Context) ([]models.StaffEntry, error) {
	ctx, span := l.tracer.Start(ctx, "DirectoryLoader.ListStaff")
	defer span.End()

	if staff, found := l.cache.Get(AllStaffKey); found {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		l.logger.Debug("Directory cache hit", zap.Int("entries", len(staff)))
		return models.CloneStaff(staff), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	staff, err := l.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("staff.count", len(staff)))
	return models.CloneStaff(staff), nil
}

func (l *Loader) load(ctx context.Context) ([]models.StaffEntry, error) {
	if l.sf == nil {
		return l.loadFromStore(ctx)
	}

	// The shared load is detached from the leader's cancellation so one
	// caller giving up does not fail everyone waiting on it. Each caller
	// still stops waiting when its own ctx is done.
	ch := l.sf.DoChan(AllStaffKey, func() (any, error) {
		return l.loadFromStore(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.logger.Debug("Shared in-flight directory load")
		}
		return res.Val.([]models.StaffEntry), nil
	}
}

// loadFromStore runs without any cache lock held.
func (l *Loader) loadFromStore(ctx context.Context) ([]models.StaffEntry, error) {
	l.metrics.Loads.Inc()
	l.logger.Debug("Directory cache miss, loading from store")

	gen := l.generation.Load()
	staff, err := l.store.FindAllStaff(ctx)
	if err != nil {
		l.metrics.LoadFailures.Inc()
		l.logger.Warn("Failed to load staff directory", zap.Error(err))
		return nil, err
	}

	snapshot := models.CloneStaff(staff)
	stored := l.cache.PutIf(AllStaffKey, snapshot, func() bool {
		return l.generation.Load() == gen
	})
	if !stored {
		l.logger.Debug("Directory invalidated during load, not caching snapshot")
	}
	return snapshot, nil
}

// Invalidate drops the cached directory so the next ListStaff reloads it.
// A load already in flight will not cache its result.
func (l *Loader) Invalidate() bool {
	return l.InvalidateKey(AllStaffKey)
}

// InvalidateKey drops one cache key.
func (l *Loader) InvalidateKey(key string) bool {
	l.generation.Inc()
	return l.cache.Invalidate(key)
}

// Clear drops every cached query.
func (l *Loader) Clear() {
	l.generation.Inc()
	l.cache.Clear()
}

// Stats returns the directory cache counters.
func (l *Loader) Stats() models.Stats {
	stats := l.metrics.Snapshot()
	stats.Entries = l.cache.Len()
	return stats
}
