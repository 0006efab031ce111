package directory

import (
	"time"

	"go.uber.org/atomic"
)

// Entry is a cached value together with the time it was inserted.
// Value and InsertedAt never change after the entry is published.
type Entry[V any] struct {
	Value          V
	InsertedAt     time.Time
	LastAccessTime *atomic.Time
}

// NewEntry creates an Entry inserted at now.
func NewEntry[V any](value V, now time.Time) *Entry[V] {
	return &Entry[V]{
		Value:          value,
		InsertedAt:     now,
		LastAccessTime: atomic.NewTime(now),
	}
}

// IsFresh reports whether an entry inserted at insertedAt is still fresh at now.
// A zero ttl is never fresh.
func IsFresh(insertedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(insertedAt) < ttl
}

// Touch records a read of the entry.
func (e *Entry[V]) Touch(now time.Time) {
	e.LastAccessTime.Store(now)
}
