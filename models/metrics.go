package models

import "go.uber.org/atomic"

// Metrics stores cache statistics
type Metrics struct {
	Hits          *atomic.Int64
	Misses        *atomic.Int64
	Evictions     *atomic.Int64
	Expirations   *atomic.Int64
	Invalidations *atomic.Int64
	Loads         *atomic.Int64
	LoadFailures  *atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		Hits:          atomic.NewInt64(0),
		Misses:        atomic.NewInt64(0),
		Evictions:     atomic.NewInt64(0),
		Expirations:   atomic.NewInt64(0),
		Invalidations: atomic.NewInt64(0),
		Loads:         atomic.NewInt64(0),
		LoadFailures:  atomic.NewInt64(0),
	}
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Evictions     int64 `json:"evictions"`
	Expirations   int64 `json:"expirations"`
	Invalidations int64 `json:"invalidations"`
	Loads         int64 `json:"loads"`
	LoadFailures  int64 `json:"loadFailures"`
	Entries       int   `json:"entries"`
}

// Snapshot reads every counter once.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Hits:          m.Hits.Load(),
		Misses:        m.Misses.Load(),
		Evictions:     m.Evictions.Load(),
		Expirations:   m.Expirations.Load(),
		Invalidations: m.Invalidations.Load(),
		Loads:         m.Loads.Load(),
		LoadFailures:  m.LoadFailures.Load(),
	}
}
