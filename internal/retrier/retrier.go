// Package retrier retries record store calls that fail with temporary errors.
package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff multiplies the delay by the factor on every attempt.
// LinearBackoff grows the delay by the base delay on every attempt.
// FibonacciBackoff grows the delay along the Fibonacci sequence.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
	FibonacciBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy selects how delays grow between attempts.
type BackoffStrategy int

// Settings holds the retry parameters.
type Settings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
	Strategy    BackoffStrategy
	// TempErrorFunc decides whether an error is worth retrying. Defaults to IsTemporary.
	TempErrorFunc func(error) bool
}

// Retrier runs a function until it succeeds, fails permanently, or runs out of attempts.
type Retrier struct {
	settings Settings

	fibMu          sync.Mutex
	fibonacciCache []time.Duration
}

// New validates settings and creates a Retrier.
func New(settings Settings) (*Retrier, error) {
	if settings.MaxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if settings.BaseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if settings.Factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if settings.Jitter < 0 || settings.Jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if settings.MaxDelay < settings.BaseDelay {
		settings.MaxDelay = settings.BaseDelay
	}
	if settings.TempErrorFunc == nil {
		settings.TempErrorFunc = IsTemporary
	}

	return &Retrier{
		settings:       settings,
		fibonacciCache: []time.Duration{settings.BaseDelay, settings.BaseDelay},
	}, nil
}

// Run calls fn until it returns nil or a non-temporary error. When every
// attempt fails the last error is wrapped, so errors.Is still matches it.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.settings.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !r.settings.TempErrorFunc(err) {
			return err
		}

		if attempt == r.settings.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(r.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}

	if r.settings.MaxAttempts == 1 {
		return err
	}
	return fmt.Errorf("max retry attempts reached: %w", err)
}

// calculateDelay computes the delay before the attempt after the given one.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	s := r.settings
	var delay float64

	switch s.Strategy {
	case LinearBackoff:
		delay = float64(s.BaseDelay) * float64(attempt+1)
	case FibonacciBackoff:
		delay = float64(r.getFibonacciDelay(attempt))
	default:
		delay = float64(s.BaseDelay) * math.Pow(s.Factor, float64(attempt))
	}

	if delay > float64(s.MaxDelay) {
		delay = float64(s.MaxDelay)
	}

	delay += rand.Float64() * s.Jitter * delay
	if delay > float64(time.Hour) {
		delay = float64(time.Hour)
	}
	return time.Duration(delay)
}

// getFibonacciDelay returns the delay for the given attempt using the Fibonacci sequence.
func (r *Retrier) getFibonacciDelay(attempt int) time.Duration {
	r.fibMu.Lock()
	defer r.fibMu.Unlock()

	for len(r.fibonacciCache) <= attempt {
		n := len(r.fibonacciCache)
		next := r.fibonacciCache[n-1] + r.fibonacciCache[n-2]
		if next > r.settings.MaxDelay {
			next = r.settings.MaxDelay
		}
		r.fibonacciCache = append(r.fibonacciCache, next)
	}
	return r.fibonacciCache[attempt]
}
