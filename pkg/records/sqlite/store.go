// Package sqlite implements records.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/records"
)

//go:embed schema.sql
var schema string

var _ records.Store = (*Store)(nil)

// DateLayout is the visit_date text format.
const DateLayout = "2006-01-02"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const visitsByPetIDsQuery = `SELECT id, pet_id, visit_date, description
FROM visits
WHERE pet_id IN (SELECT value FROM json_each(?))
ORDER BY id`

const staffQuery = `SELECT v.id, v.first_name, v.last_name, s.id, s.name
FROM vets v
LEFT JOIN vet_specialties vs ON vs.vet_id = v.id
LEFT JOIN specialties s ON s.id = vs.specialty_id
ORDER BY v.id, vs.id`

// Store reads the staff directory and visit history from SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the database at path, creating parent directories as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = "petclinic.db"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range records.SplitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Seed inserts staff and visits in one transaction. Rows whose id already
// exists are skipped.
func (s *Store) Seed(ctx context.Context, staff []models.StaffEntry, visits []models.VisitRecord) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	specialties := records.SpecialtyIDs(staff)
	for _, sp := range specialties {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO specialties (id, name) VALUES (?, ?)`, sp.ID, sp.Name); err != nil {
			return fmt.Errorf("insert specialty %d: %w", sp.ID, err)
		}
	}
	for _, e := range staff {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO vets (id, first_name, last_name) VALUES (?, ?, ?)`,
			e.ID, e.FirstName, e.LastName)
		if err != nil {
			return fmt.Errorf("insert vet %d: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		for _, sp := range e.Specialties {
			sp = records.ResolveSpecialty(sp, specialties)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vet_specialties (vet_id, specialty_id) VALUES (?, ?)`, e.ID, sp.ID); err != nil {
				return fmt.Errorf("insert vet %d specialty %d: %w", e.ID, sp.ID, err)
			}
		}
	}
	for _, v := range visits {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO visits (id, pet_id, visit_date, description) VALUES (?, ?, ?, ?)`,
			v.ID, v.PetID, v.Date.Format(DateLayout), v.Description); err != nil {
			return fmt.Errorf("insert visit %d: %w", v.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// FindAllStaff returns every vet with its specialties in join order.
func (s *Store) FindAllStaff(ctx context.Context) ([]models.StaffEntry, error) {
	rows, err := s.db.QueryContext(ctx, staffQuery)
	if err != nil {
		return nil, s.storeError(records.OpFindAllStaff, err)
	}
	defer func() { _ = rows.Close() }()

	var staff []records.StaffRow
	for rows.Next() {
		var (
			r      records.StaffRow
			specID sql.NullInt64
			name   sql.NullString
		)
		if err := rows.Scan(&r.VetID, &r.FirstName, &r.LastName, &specID, &name); err != nil {
			return nil, s.storeError(records.OpFindAllStaff, err)
		}
		if specID.Valid {
			id := int(specID.Int64)
			r.SpecialtyID = &id
		}
		if name.Valid {
			r.SpecialtyName = &name.String
		}
		staff = append(staff, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError(records.OpFindAllStaff, err)
	}
	return records.AssembleStaff(staff), nil
}

// FindVisitsByPetIDs returns the visits of every pet in petIDs ordered by visit id.
// The ids travel as one JSON array argument, so the set size is not bounded by
// the SQLite host parameter limit.
func (s *Store) FindVisitsByPetIDs(ctx context.Context, petIDs []int) ([]models.VisitRecord, error) {
	ids, err := json.Marshal(petIDs)
	if err != nil {
		return nil, s.storeError(records.OpFindVisitsByPetIDs, fmt.Errorf("encode pet ids: %w", err))
	}
	return s.queryVisits(ctx, records.OpFindVisitsByPetIDs, visitsByPetIDsQuery, string(ids))
}

// FindVisitsByPetID returns the visits of one pet ordered by visit id.
func (s *Store) FindVisitsByPetID(ctx context.Context, petID int) ([]models.VisitRecord, error) {
	return s.queryVisits(ctx, records.OpFindVisitsByPetID, `SELECT id, pet_id, visit_date, description
FROM visits
WHERE pet_id = ?
ORDER BY id`, petID)
}

func (s *Store) queryVisits(ctx context.Context, op, query string, args ...any) ([]models.VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.storeError(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.VisitRecord, 0)
	for rows.Next() {
		var (
			v           models.VisitRecord
			date        sql.NullString
			description sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.PetID, &date, &description); err != nil {
			return nil, s.storeError(op, err)
		}
		if date.Valid && date.String != "" {
			d, err := time.Parse(DateLayout, date.String)
			if err != nil {
				return nil, s.storeError(op, fmt.Errorf("parse visit %d date: %w", v.ID, err))
			}
			v.Date = d
		}
		v.Description = description.String
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError(op, err)
	}
	return out, nil
}

func (s *Store) storeError(op string, err error) error {
	unavailable := IsUnavailable(err)
	s.logger.Debug("sqlite query failed",
		zap.String("op", op),
		zap.Bool("unavailable", unavailable),
		zap.Error(err))
	return models.NewStoreError(op, err, unavailable)
}

// IsUnavailable reports whether err means the database handle could not serve the call.
func IsUnavailable(err error) bool {
	return errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "database is closed")
}
