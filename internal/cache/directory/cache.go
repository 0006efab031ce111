// Package directory implements the bounded, time-limited cache that fronts
// the staff directory lookup.
package directory

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"goflare.io/petclinic/models"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock   Clock
	logger  *zap.Logger
	metrics *models.Metrics
}

// WithClock sets the time source used for insertion and freshness checks.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics shares a metrics instance with the cache.
func WithMetrics(metrics *models.Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// Cache holds at most maxEntries values, each fresh for ttl after insertion.
// When full, inserting a new key evicts the least recently inserted key.
//
// The underlying list is only read with Peek, so its recency order is the
// insertion order. Entries are immutable and swapped in whole under mu.
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    *simplelru.LRU[K, *Entry[V]]
	ttl        time.Duration
	maxEntries int

	clock   Clock
	logger  *zap.Logger
	metrics *models.Metrics
}

// New creates a Cache. ttl must be >= 0 and maxEntries >= 1.
func New[K comparable, V any](ttl time.Duration, maxEntries int, opts ...Option) (*Cache[K, V], error) {
	if ttl < 0 {
		return nil, fmt.Errorf("%w: ttl must not be negative, got %s", models.ErrConfiguration, ttl)
	}
	if maxEntries < 1 {
		return nil, fmt.Errorf("%w: max entries must be at least 1, got %d", models.ErrConfiguration, maxEntries)
	}

	o := &options{
		clock:   ClockFunc(nil),
		logger:  zap.NewNop(),
		metrics: models.NewMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}

	entries, err := simplelru.NewLRU[K, *Entry[V]](maxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry list: %w", err)
	}

	return &Cache[K, V]{
		entries:    entries,
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      o.clock,
		logger:     o.logger,
		metrics:    o.metrics,
	}, nil
}

// Get returns the value stored for key if it is still fresh.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, found := c.entries.Peek(key)
	c.mu.RUnlock()

	var zero V
	if !found {
		c.metrics.Misses.Inc()
		return zero, false
	}

	if !IsFresh(entry.InsertedAt, now, c.ttl) {
		c.removeIfSame(key, entry)
		c.metrics.Misses.Inc()
		return zero, false
	}

	entry.Touch(now)
	c.metrics.Hits.Inc()
	return entry.Value, true
}

// removeIfSame drops a stale entry unless a newer Put already replaced it.
func (c *Cache[K, V]) removeIfSame(key K, stale *Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, found := c.entries.Peek(key)
	if !found || current != stale {
		return
	}
	c.entries.Remove(key)
	c.metrics.Expirations.Inc()
	c.logger.Debug("Expired directory cache entry", zap.Any("key", key))
}

// Put inserts or replaces the value for key.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutIf(key, value, nil)
}

// PutIf stores value only if cond, evaluated under the write lock, returns
// true. A nil cond always stores. It reports whether the value was stored.
func (c *Cache[K, V]) PutIf(key K, value V, cond func() bool) bool {
	entry := NewEntry(value, c.clock.Now())

	c.mu.Lock()
	if cond != nil && !cond() {
		c.mu.Unlock()
		return false
	}
	var (
		oldestKey K
		evicting  bool
	)
	if !c.entries.Contains(key) && c.entries.Len() >= c.maxEntries {
		oldestKey, _, evicting = c.entries.GetOldest()
	}
	c.entries.Add(key, entry)
	c.mu.Unlock()

	if evicting {
		c.metrics.Evictions.Inc()
		c.logger.Debug("Evicted directory cache entry", zap.Any("key", oldestKey))
	}
	return true
}

// Invalidate removes key and reports whether it was present.
func (c *Cache[K, V]) Invalidate(key K) bool {
	c.mu.Lock()
	removed := c.entries.Remove(key)
	c.mu.Unlock()

	if removed {
		c.metrics.Invalidations.Inc()
	}
	return removed
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	n := c.entries.Len()
	c.entries.Purge()
	c.mu.Unlock()

	c.metrics.Invalidations.Add(int64(n))
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Keys returns the stored keys from oldest to newest insertion.
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Keys()
}

// TTL returns the configured freshness window.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Metrics returns the counters the cache updates.
func (c *Cache[K, V]) Metrics() *models.Metrics {
	return c.metrics
}
