package records

import (
	"strings"

	"goflare.io/petclinic/models"
)

// StaffRow is one row of the vets LEFT JOIN specialties query. Specialty
// columns are nil for a vet without specialties.
type StaffRow struct {
	VetID         int
	FirstName     string
	LastName      string
	SpecialtyID   *int
	SpecialtyName *string
}

// AssembleStaff folds rows ordered by vet id into staff entries. Consecutive
// rows of the same vet contribute one specialty each, in row order.
func AssembleStaff(rows []StaffRow) []models.StaffEntry {
	out := make([]models.StaffEntry, 0)
	for _, r := range rows {
		if n := len(out); n == 0 || out[n-1].ID != r.VetID {
			out = append(out, models.StaffEntry{
				ID:          r.VetID,
				FirstName:   r.FirstName,
				LastName:    r.LastName,
				Specialties: []models.Specialty{},
			})
		}
		if r.SpecialtyID == nil {
			continue
		}
		sp := models.Specialty{ID: *r.SpecialtyID}
		if r.SpecialtyName != nil {
			sp.Name = *r.SpecialtyName
		}
		last := &out[len(out)-1]
		last.Specialties = append(last.Specialties, sp)
	}
	return out
}

// SplitStatements splits a schema script on semicolons, dropping blanks.
func SplitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SpecialtyIDs assigns stable ids to the specialties named in staff, keeping
// explicit ids and numbering the rest by first appearance of their name.
func SpecialtyIDs(staff []models.StaffEntry) []models.Specialty {
	byName := make(map[string]int)
	used := make(map[int]bool)
	var out []models.Specialty
	for _, e := range staff {
		for _, sp := range e.Specialties {
			if sp.ID != 0 && !used[sp.ID] {
				used[sp.ID] = true
				byName[sp.Name] = sp.ID
				out = append(out, sp)
			}
		}
	}
	next := 1
	for _, e := range staff {
		for _, sp := range e.Specialties {
			if sp.ID != 0 {
				continue
			}
			if _, ok := byName[sp.Name]; ok {
				continue
			}
			for used[next] {
				next++
			}
			used[next] = true
			byName[sp.Name] = next
			out = append(out, models.Specialty{ID: next, Name: sp.Name})
		}
	}
	return out
}

// ResolveSpecialty returns sp with its id filled from the assignment made by SpecialtyIDs.
func ResolveSpecialty(sp models.Specialty, assigned []models.Specialty) models.Specialty {
	if sp.ID != 0 {
		return sp
	}
	for _, a := range assigned {
		if a.Name == sp.Name {
			return a
		}
	}
	return sp
}
