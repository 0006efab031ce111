package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/petclinic/models"
)

var day = time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(MemoryPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))

	staff := []models.StaffEntry{
		{ID: 1, FirstName: "James", LastName: "Carter"},
		{ID: 2, FirstName: "Helen", LastName: "Leary", Specialties: []models.Specialty{{Name: "radiology"}}},
		{ID: 3, FirstName: "Linda", LastName: "Douglas", Specialties: []models.Specialty{
			{Name: "surgery"}, {Name: "dentistry"}, {Name: "surgery"},
		}},
	}
	visits := []models.VisitRecord{
		{ID: 1, PetID: 7, Date: day, Description: "rabies shot"},
		{ID: 2, PetID: 8, Date: day, Description: "rabies shot"},
		{ID: 3, PetID: 8, Date: day.AddDate(0, 0, 1), Description: "neutered"},
		{ID: 4, PetID: 9, Date: day, Description: "spayed"},
	}
	require.NoError(t, store.Seed(ctx, staff, visits))
	return store
}

func TestFindAllStaff(t *testing.T) {
	store := newSeededStore(t)

	got, err := store.FindAllStaff(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, models.StaffEntry{ID: 1, FirstName: "James", LastName: "Carter", Specialties: []models.Specialty{}}, got[0])
	assert.Equal(t, []models.Specialty{{ID: 1, Name: "radiology"}}, got[1].Specialties)
	assert.Equal(t, []models.Specialty{
		{ID: 2, Name: "surgery"}, {ID: 3, Name: "dentistry"}, {ID: 2, Name: "surgery"},
	}, got[2].Specialties)
	assert.Equal(t, 3, got[2].NrOfSpecialties())
}

func TestFindAllStaffEmpty(t *testing.T) {
	store, err := Open(MemoryPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))

	got, err := store.FindAllStaff(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindVisitsByPetIDs(t *testing.T) {
	store := newSeededStore(t)

	got, err := store.FindVisitsByPetIDs(context.Background(), []int{8, 7, 42})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, models.VisitRecord{ID: 1, PetID: 7, Date: day, Description: "rabies shot"}, got[0])
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, day.AddDate(0, 0, 1), got[2].Date)

	none, err := store.FindVisitsByPetIDs(context.Background(), []int{42})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindVisitsByPetID(t *testing.T) {
	store := newSeededStore(t)

	got, err := store.FindVisitsByPetID(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "neutered", got[1].Description)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	require.NoError(t, store.Seed(ctx, []models.StaffEntry{{ID: 3, FirstName: "Linda", LastName: "Douglas"}}, nil))
	got, err := store.FindAllStaff(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Len(t, got[2].Specialties, 3)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	store := newSeededStore(t)
	require.NoError(t, store.Close())

	_, err := store.FindAllStaff(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	store := newSeededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FindVisitsByPetIDs(ctx, []int{7})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestOpenCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "petclinic.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestFindVisitsByPetIDsBeyondParameterLimit(t *testing.T) {
	store := newSeededStore(t)

	ids := make([]int, 0, 40000)
	for id := 1000; len(ids) < cap(ids); id++ {
		ids = append(ids, id)
	}
	ids = append(ids, 8)

	got, err := store.FindVisitsByPetIDs(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 8, got[0].PetID)
	assert.Equal(t, 8, got[1].PetID)
}
