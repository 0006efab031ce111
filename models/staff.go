package models

import "slices"

// Specialty is a veterinary specialty owned by the record store.
type Specialty struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StaffEntry is one member of the veterinary staff directory.
// Specialties keep the order and multiplicity the store returned them in.
type StaffEntry struct {
	ID          int         `json:"id"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Specialties []Specialty `json:"specialties"`
}

// NrOfSpecialties returns how many specialty references the entry holds.
func (s StaffEntry) NrOfSpecialties() int {
	return len(s.Specialties)
}

// CloneStaff returns a deep copy of entries so callers can never share
// backing arrays with a cached snapshot. A nil input yields an empty slice.
func CloneStaff(entries []StaffEntry) []StaffEntry {
	out := make([]StaffEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		if e.Specialties != nil {
			out[i].Specialties = slices.Clone(e.Specialties)
		} else {
			out[i].Specialties = []Specialty{}
		}
	}
	return out
}
