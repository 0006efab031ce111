package visits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/petclinic/models"
)

type visitStub struct {
	mu          sync.Mutex
	records     []models.VisitRecord
	err         error
	batchCalls  [][]int
	singleCalls []int
}

func (s *visitStub) FindVisitsByPetIDs(_ context.Context, petIDs []int) ([]models.VisitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls = append(s.batchCalls, append([]int(nil), petIDs...))
	if s.err != nil {
		return nil, s.err
	}
	var out []models.VisitRecord
	for _, r := range s.records {
		for _, id := range petIDs {
			if r.PetID == id {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *visitStub) FindVisitsByPetID(_ context.Context, petID int) ([]models.VisitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singleCalls = append(s.singleCalls, petID)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.VisitRecord
	for _, r := range s.records {
		if r.PetID == petID {
			out = append(out, r)
		}
	}
	return out, nil
}

var day = time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleVisits() []models.VisitRecord {
	return []models.VisitRecord{
		{ID: 1, PetID: 7, Date: day, Description: "rabies shot"},
		{ID: 2, PetID: 8, Date: day, Description: "rabies shot"},
		{ID: 3, PetID: 8, Date: day.AddDate(0, 0, 3), Description: "neutered"},
		{ID: 4, PetID: 7, Date: day.AddDate(0, 0, 4), Description: "spayed"},
		{ID: 5, PetID: 1, Date: day, Description: "regular checkup"},
	}
}

func newAggregator(t *testing.T, store VisitFinder) *Aggregator {
	return New(store, WithLogger(zaptest.NewLogger(t)))
}

func TestReadBatchEmptySkipsStore(t *testing.T) {
	store := &visitStub{records: sampleVisits()}
	a := newAggregator(t, store)

	for _, ids := range [][]int{nil, {}} {
		records, err := a.ReadBatch(context.Background(), ids)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	}
	assert.Empty(t, store.batchCalls)
	assert.Empty(t, store.singleCalls)
}

func TestReadBatchNoPlaceholdersForPetsWithoutVisits(t *testing.T) {
	store := &visitStub{records: sampleVisits()}
	a := newAggregator(t, store)

	records, err := a.ReadBatch(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].ID)
	assert.Equal(t, 1, records[0].PetID)
}

func TestReadBatchDeduplicatesIDs(t *testing.T) {
	store := &visitStub{records: sampleVisits()}
	a := newAggregator(t, store)

	records, err := a.ReadBatch(context.Background(), []int{1, 1, 2})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.Len(t, store.batchCalls, 1)
	assert.Equal(t, []int{1, 2}, store.batchCalls[0])
}

func TestReadBatchPreservesStoreOrder(t *testing.T) {
	store := &visitStub{records: sampleVisits()}
	a := newAggregator(t, store)

	records, err := a.ReadBatch(context.Background(), []int{8, 7})
	require.NoError(t, err)

	ids := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
	assert.Len(t, store.batchCalls, 1)
}

func TestReadBatchDropsRecordsOfUnrequestedPets(t *testing.T) {
	store := &leakyStore{records: sampleVisits()}
	a := newAggregator(t, store)

	records, err := a.ReadBatch(context.Background(), []int{8})
	require.NoError(t, err)
	for _, r := range records {
		assert.Equal(t, 8, r.PetID)
	}
	assert.Len(t, records, 2)

	single, err := a.Read(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, single, 2)
}

func TestReadBatchPropagatesStoreErrors(t *testing.T) {
	boom := models.NewStoreError("find visits by pet ids", errors.New("timeout"), true)
	store := &visitStub{records: sampleVisits(), err: boom}
	a := newAggregator(t, store)

	records, err := a.ReadBatch(context.Background(), []int{7, 8})
	assert.Nil(t, records)
	assert.Same(t, boom, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Len(t, store.batchCalls, 1)
}

func TestReadSingleUsesDirectLookup(t *testing.T) {
	store := &visitStub{records: sampleVisits()}
	a := newAggregator(t, store)

	records, err := a.Read(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].ID)
	assert.Equal(t, 3, records[1].ID)
	assert.Equal(t, []int{8}, store.singleCalls)
	assert.Empty(t, store.batchCalls)

	none, err := a.Read(context.Background(), 99)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReadMatchesBatchOfOne(t *testing.T) {
	store := &visitStub{records: sampleVisits()}
	a := newAggregator(t, store)

	single, err := a.Read(context.Background(), 7)
	require.NoError(t, err)
	batch, err := a.ReadBatch(context.Background(), []int{7})
	require.NoError(t, err)
	assert.Equal(t, single, batch)
}

func TestGroupByPet(t *testing.T) {
	grouped := GroupByPet(sampleVisits())
	assert.Len(t, grouped, 3)
	assert.Equal(t, []int{1, 4}, []int{grouped[7][0].ID, grouped[7][1].ID})
	assert.Len(t, grouped[8], 2)
	assert.Empty(t, grouped[99])
}

// leakyStore ignores the requested ids.
type leakyStore struct {
	records []models.VisitRecord
}

func (s *leakyStore) FindVisitsByPetIDs(context.Context, []int) ([]models.VisitRecord, error) {
	return s.records, nil
}

func (s *leakyStore) FindVisitsByPetID(context.Context, int) ([]models.VisitRecord, error) {
	return s.records, nil
}
