package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"vein-assessment/internal/config"
)

func newMigrateCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back Postgres schema migrations",
	}
	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Database.URL == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No DATABASE_URL set; the SQLite store creates its schema on open.")
				return nil
			}
			if err := runMigrations(cfg, up); err != nil {
				return err
			}
			log.Info("Migrations applied successfully!", "up", up)
			return nil
		}
	}
	cmd.AddCommand(&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run(true)})
	cmd.AddCommand(&cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: run(false)})
	return cmd
}

func runMigrations(cfg *config.Config, up bool) error {
	m, err := migrate.New("file://"+cfg.Database.MigrationsDir, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()

	if up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
