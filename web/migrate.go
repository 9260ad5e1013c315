package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/passage/internal/config"
	"github.com/devilmonastery/passage/internal/infrastructure/database"
	"github.com/devilmonastery/passage/migrations"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	var forceVersion int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Bring the database schema up to date, or force the recorded version to recover from a dirty migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(*configPath, forceVersion)
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")

	return cmd
}

func runMigrate(configPath string, forceVersion int) error {
	log := slog.Default().With("component", "migrate")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	conn, err := database.NewConnection(cfg.Database.DataSource())
	if err != nil {
		return err
	}
	defer conn.Close()

	// Handle force migration if requested
	if forceVersion >= 0 {
		log.Info("Force setting migration version", "version", forceVersion)
		if err := conn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		log.Info("Migration version forced, exiting", "version", forceVersion)
		return nil
	}

	if err := conn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := conn.MigrationVersion(migrations.FS)
	if err != nil {
		return err
	}
	log.Info("database schema up to date", "driver", conn.Driver(), "version", version, "dirty", dirty)
	return nil
}
