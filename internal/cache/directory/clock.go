package directory

import "time"

// Clock supplies the current time to the cache.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc uses time.Now.
type ClockFunc func() time.Time

// Now returns the current time.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}
