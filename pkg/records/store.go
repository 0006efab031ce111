// Package records defines the record store contract consumed by the
// directory cache and the visit aggregator, plus an in-memory implementation.
package records

import (
	"context"

	"goflare.io/petclinic/models"
)

// Store is the persistence collaborator. Implementations must be safe for
// concurrent use. Failures are models.ErrStoreUnavailable or *models.StoreError.
type Store interface {
	// FindAllStaff returns the whole staff directory.
	FindAllStaff(ctx context.Context) ([]models.StaffEntry, error)
	// FindVisitsByPetIDs returns every visit whose PetID is in petIDs.
	// petIDs is never empty.
	FindVisitsByPetIDs(ctx context.Context, petIDs []int) ([]models.VisitRecord, error)
	// FindVisitsByPetID returns the visits of a single pet.
	FindVisitsByPetID(ctx context.Context, petID int) ([]models.VisitRecord, error)
}

// Operation names used in StoreError.Op.
const (
	OpFindAllStaff       = "find all staff"
	OpFindVisitsByPetIDs = "find visits by pet ids"
	OpFindVisitsByPetID  = "find visits by pet id"
)
