package records

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/atomic"

	"goflare.io/petclinic/models"
)

// Compile-time contract assertion.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records in process memory. It counts calls per operation
// and can be told to fail, which makes it useful in tests and examples.
type MemoryStore struct {
	mu     sync.RWMutex
	staff  []models.StaffEntry
	visits []models.VisitRecord
	err    error

	// highest ids seen so far, explicit or assigned
	maxStaffID int
	maxVisitID int

	staffCalls  *atomic.Int64
	batchCalls  *atomic.Int64
	singleCalls *atomic.Int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		staffCalls:  atomic.NewInt64(0),
		batchCalls:  atomic.NewInt64(0),
		singleCalls: atomic.NewInt64(0),
	}
}

// AddStaff appends entries to the directory. Entries without an id get one
// above the highest id added so far.
func (s *MemoryStore) AddStaff(entries ...models.StaffEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == 0 {
			e.ID = s.maxStaffID + 1
		}
		s.maxStaffID = max(s.maxStaffID, e.ID)
		s.staff = append(s.staff, models.CloneStaff([]models.StaffEntry{e})[0])
	}
}

// AddVisits appends visits. Visits without an id get one above the highest
// id added so far.
func (s *MemoryStore) AddVisits(visits ...models.VisitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range visits {
		if v.ID == 0 {
			v.ID = s.maxVisitID + 1
		}
		s.maxVisitID = max(s.maxVisitID, v.ID)
		s.visits = append(s.visits, v)
	}
}

// SetError makes every following call fail with err until cleared with nil.
func (s *MemoryStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// FindAllStaff returns a copy of the directory in insertion order.
func (s *MemoryStore) FindAllStaff(ctx context.Context) ([]models.StaffEntry, error) {
	s.staffCalls.Inc()
	if err := ctx.Err(); err != nil {
		return nil, models.NewStoreError(OpFindAllStaff, err, true)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return models.CloneStaff(s.staff), nil
}

// FindVisitsByPetIDs returns the matching visits in insertion order.
func (s *MemoryStore) FindVisitsByPetIDs(ctx context.Context, petIDs []int) ([]models.VisitRecord, error) {
	s.batchCalls.Inc()
	if err := ctx.Err(); err != nil {
		return nil, models.NewStoreError(OpFindVisitsByPetIDs, err, true)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	out := make([]models.VisitRecord, 0)
	for _, v := range s.visits {
		if slices.Contains(petIDs, v.PetID) {
			out = append(out, v)
		}
	}
	return out, nil
}

// FindVisitsByPetID returns the visits of one pet in insertion order.
func (s *MemoryStore) FindVisitsByPetID(ctx context.Context, petID int) ([]models.VisitRecord, error) {
	s.singleCalls.Inc()
	if err := ctx.Err(); err != nil {
		return nil, models.NewStoreError(OpFindVisitsByPetID, err, true)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	out := make([]models.VisitRecord, 0)
	for _, v := range s.visits {
		if v.PetID == petID {
			out = append(out, v)
		}
	}
	return out, nil
}

// StaffCalls returns how many times FindAllStaff was called.
func (s *MemoryStore) StaffCalls() int64 { return s.staffCalls.Load() }

// BatchCalls returns how many times FindVisitsByPetIDs was called.
func (s *MemoryStore) BatchCalls() int64 { return s.batchCalls.Load() }

// SingleCalls returns how many times FindVisitsByPetID was called.
func (s *MemoryStore) SingleCalls() int64 { return s.singleCalls.Load() }
