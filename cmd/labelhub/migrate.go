// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/labelhub/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the credential store schema. With no subcommand, applies all
pending migrations. DATABASE_URL selects the database (postgres:// or sqlite://).`,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp,
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateDown(cmd, all)
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE:  runMigrateStatus,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this
to recover after a failed migration has been repaired by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateForce,
	})

	return cmd
}

// getDatabaseURL returns DATABASE_URL or a CONFIG_INVALID error.
func getDatabaseURL() (string, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return cfg.Database.URL, nil
}

func openMigrator(cmd *cobra.Command) (*store.Migrator, error) {
	databaseURL, err := getDatabaseURL()
	if err != nil {
		return nil, err
	}
	cmd.Println("Connecting to database...")
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return migrator, nil
}

func closeMigrator(cmd *cobra.Command, migrator *store.Migrator) {
	if err := migrator.Close(); err != nil {
		cmd.PrintErrf("Warning: closing migrator: %v\n", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
	}
	if len(pending) == 0 {
		cmd.Println("Database schema is up to date")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Printf("Applied %d migration(s)\n", len(pending))
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, all bool) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	if all {
		if err := migrator.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back all migrations").Wrap(err)
		}
		cmd.Println("Rolled back all migrations")
		return nil
	}

	if err := migrator.Steps(-1); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back one migration").Wrap(err)
	}
	cmd.Println("Rolled back one migration")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	status, err := migrator.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read migration status").Wrap(err)
	}

	cmd.Print(formatMigrationStatus(status))
	return nil
}

// formatMigrationStatus renders the status report.
func formatMigrationStatus(status *store.MigrationStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dialect: %s\n", status.Dialect)
	fmt.Fprintf(&b, "Version: %d", status.Version)
	if status.Dirty {
		b.WriteString(" (dirty)")
	}
	b.WriteString("\n")

	section := func(title string, migrations []store.Migration) {
		fmt.Fprintf(&b, "%s: %d\n", title, len(migrations))
		for _, m := range migrations {
			fmt.Fprintf(&b, "  %s\n", m.Name)
		}
	}
	section("Applied", status.Applied)
	section("Pending", status.Pending)
	return b.String()
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(raw string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").
			With("input", raw).
			Errorf("version must be an integer: %v", err)
	}
	return version, nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}

	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, migrator)

	if err := migrator.Force(version); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
	}
	cmd.Printf("Forced schema version to %d\n", version)
	return nil
}
