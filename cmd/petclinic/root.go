package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/petclinic"
	"goflare.io/petclinic/internal/config"
	"goflare.io/petclinic/models"
	"goflare.io/petclinic/pkg/records"
	"goflare.io/petclinic/pkg/records/postgres"
	"goflare.io/petclinic/pkg/records/sqlite"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "petclinic",
	Short: "Query the clinic staff directory and visit history",
	Long: `Read the veterinary staff directory and pet visit history through the
records core. Settings come from a petclinic config file and PETCLINIC_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./petclinic.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable development logging")

	rootCmd.AddCommand(vetsCmd)
	rootCmd.AddCommand(visitsCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(schemaCmd)
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// seeder is implemented by the SQL stores.
type seeder interface {
	EnsureSchema(ctx context.Context) error
	Seed(ctx context.Context, staff []models.StaffEntry, visits []models.VisitRecord) error
}

// backend is an opened record store with its release function.
type backend struct {
	store  records.Store
	seeder seeder
	close  func()
}

func openBackend(ctx context.Context, s *config.Settings, logger *zap.Logger) (*backend, error) {
	switch s.Store.Driver {
	case "memory":
		mem := records.NewMemoryStore()
		mem.AddStaff(records.SampleStaff()...)
		mem.AddVisits(records.SampleVisits()...)
		return &backend{store: mem, close: func() {}}, nil
	case "sqlite":
		store, err := sqlite.Open(s.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		return &backend{store: store, seeder: store, close: func() { _ = store.Close() }}, nil
	case "postgres":
		store, err := postgres.Connect(ctx, s.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		return &backend{store: store, seeder: store, close: store.Close}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported store driver %q", models.ErrConfiguration, s.Store.Driver)
	}
}

// session bundles everything a subcommand needs.
type session struct {
	settings *config.Settings
	logger   *zap.Logger
	backend  *backend
	clinic   *petclinic.Clinic
	redis    redis.UniversalClient
}

func (s *session) Close() {
	if s.clinic != nil {
		_ = s.clinic.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.backend != nil {
		s.backend.close()
	}
	_ = s.logger.Sync()
}

// openSession loads settings, opens the store and builds a Clinic. When
// withRedis is set the configured Redis address is required.
func openSession(ctx context.Context, withRedis bool) (*session, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sess := &session{settings: settings, logger: logger}

	sess.backend, err = openBackend(ctx, settings, logger)
	if err != nil {
		sess.Close()
		return nil, err
	}

	opts := []petclinic.Option{petclinic.WithLogger(logger)}
	for _, opt := range settings.Options() {
		opts = append(opts, petclinic.Option(opt))
	}
	if withRedis {
		if settings.Redis.Addr == "" {
			sess.Close()
			return nil, fmt.Errorf("%w: redis.addr is required", models.ErrConfiguration)
		}
		sess.redis = redis.NewClient(&redis.Options{Addr: settings.Redis.Addr})
		if err := sess.redis.Ping(ctx).Err(); err != nil {
			sess.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		opts = append(opts, petclinic.WithInvalidation(sess.redis, settings.Redis.Channel))
	}

	sess.clinic, err = petclinic.New(ctx, sess.backend.store, opts...)
	if err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
