package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/spec-kit/intervention-service/internal/persistence"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := bootstrap()
			defer logger.Sync() //nolint:errcheck

			if dir == "" {
				dir = cfg.Postgres.MigrationsDir
			}
			ctx := context.Background()
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if !pg.Enabled() {
				return errors.New("POSTGRES_DSN is required to run migrations")
			}
			return persistence.RunMigrations(ctx, pg.Pool, dir, logger)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}
