// Package postgres implements records.Store on a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/records"
)

//go:embed schema.sql
var schema string

var _ records.Store = (*Store)(nil)

const (
	staffQuery = `SELECT v.id, v.first_name, v.last_name, s.id, s.name
FROM vets v
LEFT JOIN vet_specialties vs ON vs.vet_id = v.id
LEFT JOIN specialties s ON s.id = vs.specialty_id
ORDER BY v.id, vs.id`

	visitsByPetIDsQuery = `SELECT id, pet_id, visit_date, description
FROM visits
WHERE pet_id = ANY($1)
ORDER BY id`

	visitsByPetIDQuery = `SELECT id, pet_id, visit_date, description
FROM visits
WHERE pet_id = $1
ORDER BY id`
)

// Store reads the staff directory and visit history from Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(pool, logger), nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Pool exposes the underlying pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range records.SplitStatements(schema) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Seed inserts staff and visits in one transaction. Rows whose id already
// exists are skipped.
func (s *Store) Seed(ctx context.Context, staff []models.StaffEntry, visits []models.VisitRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	specialties := records.SpecialtyIDs(staff)
	for _, sp := range specialties {
		if _, err := tx.Exec(ctx,
			`INSERT INTO specialties (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			sp.ID, sp.Name); err != nil {
			return fmt.Errorf("insert specialty %d: %w", sp.ID, err)
		}
	}
	for _, e := range staff {
		tag, err := tx.Exec(ctx,
			`INSERT INTO vets (id, first_name, last_name) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			e.ID, e.FirstName, e.LastName)
		if err != nil {
			return fmt.Errorf("insert vet %d: %w", e.ID, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		for _, sp := range e.Specialties {
			sp = records.ResolveSpecialty(sp, specialties)
			if _, err := tx.Exec(ctx,
				`INSERT INTO vet_specialties (vet_id, specialty_id) VALUES ($1, $2)`,
				e.ID, sp.ID); err != nil {
				return fmt.Errorf("insert vet %d specialty %d: %w", e.ID, sp.ID, err)
			}
		}
	}
	for _, v := range visits {
		if _, err := tx.Exec(ctx,
			`INSERT INTO visits (id, pet_id, visit_date, description) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			v.ID, v.PetID, v.Date, v.Description); err != nil {
			return fmt.Errorf("insert visit %d: %w", v.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// FindAllStaff returns every vet with its specialties in join order.
func (s *Store) FindAllStaff(ctx context.Context) ([]models.StaffEntry, error) {
	rows, err := s.pool.Query(ctx, staffQuery)
	if err != nil {
		return nil, s.storeError(records.OpFindAllStaff, err)
	}
	defer rows.Close()

	var staff []records.StaffRow
	for rows.Next() {
		var r records.StaffRow
		if err := rows.Scan(&r.VetID, &r.FirstName, &r.LastName, &r.SpecialtyID, &r.SpecialtyName); err != nil {
			return nil, s.storeError(records.OpFindAllStaff, err)
		}
		staff = append(staff, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError(records.OpFindAllStaff, err)
	}
	return records.AssembleStaff(staff), nil
}

// FindVisitsByPetIDs returns the visits of every pet in petIDs ordered by visit id.
func (s *Store) FindVisitsByPetIDs(ctx context.Context, petIDs []int) ([]models.VisitRecord, error) {
	rows, err := s.pool.Query(ctx, visitsByPetIDsQuery, petIDs)
	if err != nil {
		return nil, s.storeError(records.OpFindVisitsByPetIDs, err)
	}
	visits, err := scanVisits(rows)
	if err != nil {
		return nil, s.storeError(records.OpFindVisitsByPetIDs, err)
	}
	return visits, nil
}

// FindVisitsByPetID returns the visits of one pet ordered by visit id.
func (s *Store) FindVisitsByPetID(ctx context.Context, petID int) ([]models.VisitRecord, error) {
	rows, err := s.pool.Query(ctx, visitsByPetIDQuery, petID)
	if err != nil {
		return nil, s.storeError(records.OpFindVisitsByPetID, err)
	}
	visits, err := scanVisits(rows)
	if err != nil {
		return nil, s.storeError(records.OpFindVisitsByPetID, err)
	}
	return visits, nil
}

func scanVisits(rows pgx.Rows) ([]models.VisitRecord, error) {
	defer rows.Close()
	out := make([]models.VisitRecord, 0)
	for rows.Next() {
		var (
			v           models.VisitRecord
			date        *time.Time
			description *string
		)
		if err := rows.Scan(&v.ID, &v.PetID, &date, &description); err != nil {
			return nil, err
		}
		if date != nil {
			v.Date = *date
		}
		if description != nil {
			v.Description = *description
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) storeError(op string, err error) error {
	unavailable := IsUnavailable(err)
	s.logger.Debug("postgres query failed",
		zap.String("op", op),
		zap.Bool("unavailable", unavailable),
		zap.Error(err))
	return models.NewStoreError(op, err, unavailable)
}

// IsUnavailable reports whether err means the server could not be reached,
// as opposed to a statement the server rejected.
func IsUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
