package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/petclinic/internal/config"
	"goflare.io/petclinic/pkg/records"
)

var seedSample bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the record store tables, optionally loading sample data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		settings, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		b, err := openBackend(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer b.close()
		if b.seeder == nil {
			return fmt.Errorf("store driver %q has no schema", settings.Store.Driver)
		}

		if err := b.seeder.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("Schema ready", zap.String("driver", settings.Store.Driver))
		if !seedSample {
			return nil
		}
		if err := b.seeder.Seed(ctx, records.SampleStaff(), records.SampleVisits()); err != nil {
			return err
		}
		logger.Info("Sample data loaded", zap.String("driver", settings.Store.Driver))
		return nil
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&seedSample, "seed", false, "load the sample directory and visits")
}
