// Package resilience wraps a record store with a circuit breaker and retries.
// The cache and the aggregator never retry; this decorator is where the
// collaborator-side retry policy lives.
package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/petclinic/internal/retrier"
	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/records"
)

// Compile-time contract assertion.
var _ records.Store = (*Store)(nil)

// Store forwards calls to the wrapped store through a retrier and a breaker.
// An open breaker surfaces as models.ErrStoreUnavailable.
type Store struct {
	next    records.Store
	cb      *gobreaker.CircuitBreaker
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewStore wraps next. settings.IsSuccessful is replaced so that only
// unavailability trips the breaker.
func NewStore(next records.Store, settings gobreaker.Settings, r *retrier.Retrier, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings.IsSuccessful = func(err error) bool {
		return err == nil || !errors.Is(err, models.ErrStoreUnavailable)
	}
	onStateChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Record store circuit breaker changed state",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	}

	return &Store{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker(settings),
		retrier: r,
		logger:  logger,
	}
}

// FindAllStaff calls the wrapped store with resilience.
func (s *Store) FindAllStaff(ctx context.Context) ([]models.StaffEntry, error) {
	var staff []models.StaffEntry
	err := s.execute(ctx, records.OpFindAllStaff, func() error {
		var err error
		staff, err = s.next.FindAllStaff(ctx)
		return err
	})
	return staff, err
}

// FindVisitsByPetIDs calls the wrapped store with resilience.
func (s *Store) FindVisitsByPetIDs(ctx context.Context, petIDs []int) ([]models.VisitRecord, error) {
	var visits []models.VisitRecord
	err := s.execute(ctx, records.OpFindVisitsByPetIDs, func() error {
		var err error
		visits, err = s.next.FindVisitsByPetIDs(ctx, petIDs)
		return err
	})
	return visits, err
}

// FindVisitsByPetID calls the wrapped store with resilience.
func (s *Store) FindVisitsByPetID(ctx context.Context, petID int) ([]models.VisitRecord, error) {
	var visits []models.VisitRecord
	err := s.execute(ctx, records.OpFindVisitsByPetID, func() error {
		var err error
		visits, err = s.next.FindVisitsByPetID(ctx, petID)
		return err
	})
	return visits, err
}

// State returns the breaker state.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func (s *Store) execute(ctx context.Context, op string, f func() error) error {
	_, err := s.cb.Execute(func() (any, error) {
		if s.retrier == nil {
			return nil, f()
		}
		return nil, s.retrier.Run(ctx, f)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Debug("Rejected record store call", zap.String("op", op), zap.Error(err))
		return models.NewStoreError(op, fmt.Errorf("circuit breaker: %w", err), true)
	}
	return err
}
