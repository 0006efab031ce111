package models

import "time"

// VisitRecord is a single visit of a pet. PetID is a foreign key that is not
// checked for existence here.
type VisitRecord struct {
	ID          int       `json:"id"`
	PetID       int       `json:"petId"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Visits wraps a batch lookup result the way the visits endpoint returns it.
type Visits struct {
	Items []VisitRecord `json:"items"`
}
