package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/petclinic/models"
)

func TestMemoryStoreStaffRoundTripsDuplicateSpecialties(t *testing.T) {
	s := NewMemoryStore()
	radiology := models.Specialty{ID: 1, Name: "radiology"}
	s.AddStaff(
		models.StaffEntry{FirstName: "James", LastName: "Carter"},
		models.StaffEntry{FirstName: "Helen", LastName: "Leary", Specialties: []models.Specialty{radiology, radiology}},
	)

	staff, err := s.FindAllStaff(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, 1, staff[0].ID)
	assert.Equal(t, "James", staff[0].FirstName)
	assert.Empty(t, staff[0].Specialties)
	assert.Equal(t, []models.Specialty{radiology, radiology}, staff[1].Specialties)

	staff[1].Specialties[0].Name = "mutated"
	again, err := s.FindAllStaff(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "radiology", again[1].Specialties[0].Name)
	assert.Equal(t, int64(2), s.StaffCalls())
}

func TestMemoryStoreVisits(t *testing.T) {
	s := NewMemoryStore()
	day := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	s.AddVisits(
		models.VisitRecord{PetID: 7, Date: day, Description: "rabies shot"},
		models.VisitRecord{PetID: 8, Date: day, Description: "rabies shot"},
		models.VisitRecord{PetID: 7, Date: day.AddDate(0, 1, 0), Description: "neutered"},
	)

	batch, err := s.FindVisitsByPetIDs(context.Background(), []int{7, 99})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, []int{1, 3}, []int{batch[0].ID, batch[1].ID})

	single, err := s.FindVisitsByPetID(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, 2, single[0].ID)

	none, err := s.FindVisitsByPetID(context.Background(), 99)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryStoreErrors(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.SetError(boom)

	_, err := s.FindAllStaff(context.Background())
	assert.ErrorIs(t, err, boom)

	s.SetError(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FindVisitsByPetIDs(ctx, []int{1})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreAssignsIDsAboveExplicitOnes(t *testing.T) {
	store := NewMemoryStore()
	store.AddStaff(models.StaffEntry{ID: 2, FirstName: "Helen"})
	store.AddStaff(models.StaffEntry{FirstName: "James"}, models.StaffEntry{FirstName: "Linda"})
	store.AddVisits(models.VisitRecord{ID: 5, PetID: 7}, models.VisitRecord{PetID: 8})
	store.AddVisits(models.VisitRecord{PetID: 9})

	staff, err := store.FindAllStaff(context.Background())
	require.NoError(t, err)
	ids := make([]int, 0, len(staff))
	for _, e := range staff {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int{2, 3, 4}, ids)

	visits, err := store.FindVisitsByPetIDs(context.Background(), []int{7, 8, 9})
	require.NoError(t, err)
	require.Len(t, visits, 3)
	assert.Equal(t, []int{5, 6, 7}, []int{visits[0].ID, visits[1].ID, visits[2].ID})
}
