package records

import (
	"time"

	"goflare.io/petclinic/models"
)

// SampleStaff is the demo directory used by the schema command and examples.
func SampleStaff() []models.StaffEntry {
	radiology := models.Specialty{ID: 1, Name: "radiology"}
	surgery := models.Specialty{ID: 2, Name: "surgery"}
	dentistry := models.Specialty{ID: 3, Name: "dentistry"}
	return []models.StaffEntry{
		{ID: 1, FirstName: "James", LastName: "Carter", Specialties: []models.Specialty{}},
		{ID: 2, FirstName: "Helen", LastName: "Leary", Specialties: []models.Specialty{radiology}},
		{ID: 3, FirstName: "Linda", LastName: "Douglas", Specialties: []models.Specialty{surgery, dentistry}},
		{ID: 4, FirstName: "Rafael", LastName: "Ortega", Specialties: []models.Specialty{surgery}},
		{ID: 5, FirstName: "Henry", LastName: "Stevens", Specialties: []models.Specialty{radiology}},
		{ID: 6, FirstName: "Sharon", LastName: "Jenkins", Specialties: []models.Specialty{}},
	}
}

// SampleVisits is the demo visit history matching SampleStaff.
func SampleVisits() []models.VisitRecord {
	day := func(d int) time.Time { return time.Date(2013, time.January, d, 0, 0, 0, 0, time.UTC) }
	return []models.VisitRecord{
		{ID: 1, PetID: 7, Date: day(1), Description: "rabies shot"},
		{ID: 2, PetID: 8, Date: day(2), Description: "rabies shot"},
		{ID: 3, PetID: 8, Date: day(3), Description: "neutered"},
		{ID: 4, PetID: 7, Date: day(4), Description: "spayed"},
	}
}
