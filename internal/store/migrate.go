// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"database/sql"
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// migrateIface is the part of *migrate.Migrate the Migrator uses. Unit tests
// substitute fakes so no database is needed.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator wraps golang-migrate for database schema management.
type Migrator struct {
	m       migrateIface
	dialect Dialect
}

// migrationsDir returns the embedded directory holding the dialect's migrations.
func migrationsDir(dialect Dialect) string {
	return "migrations/" + string(dialect)
}

// newSource creates an iofs source over the dialect's embedded migrations.
func newSource(dialect Dialect) (source.Driver, error) {
	src, err := iofs.New(migrationsFS, migrationsDir(dialect))
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").
			With("operation", "create migration source").
			With("dialect", string(dialect)).
			Wrap(err)
	}
	return src, nil
}

// NewMigrator creates a new Migrator instance from a DATABASE_URL.
// PostgreSQL URLs may use the postgres:// or postgresql:// scheme; they are
// converted to pgx5:// for golang-migrate. SQLite URLs use sqlite://<path>.
func NewMigrator(databaseURL string) (*Migrator, error) {
	dialect, _, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	src, err := newSource(dialect)
	if err != nil {
		return nil, err
	}

	migrateURL := databaseURL
	if rest, found := strings.CutPrefix(databaseURL, "postgres://"); found {
		migrateURL = "pgx5://" + rest
	} else if rest, found := strings.CutPrefix(databaseURL, "postgresql://"); found {
		migrateURL = "pgx5://" + rest
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL)
	if err != nil {
		_ = src.Close() //nolint:errcheck // cleanup for embedded FS; init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return &Migrator{m: m, dialect: dialect}, nil
}

// MigrateSQLite applies all pending SQLite migrations on an open database.
// The database stays open and owned by the caller.
func MigrateSQLite(db *sql.DB) error {
	src, err := newSource(DialectSQLite)
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck // embedded FS close cannot fail meaningfully

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "wrap sqlite instance").Wrap(err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(DialectSQLite), driver)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return (&Migrator{m: m, dialect: DialectSQLite}).Up()
}

// Dialect returns the database dialect this migrator targets.
func (m *Migrator) Dialect() Dialect {
	return m.dialect
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back all migrations to version 0, effectively removing all schema objects.
// WARNING: This is a destructive operation that drops all tables and data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// A dirty state indicates a migration failed partway through and requires manual intervention.
// Returns version 0 with dirty=false if no migrations have been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use only for recovering from a dirty state after manually fixing the database.
// Version must be non-negative; negative values are rejected with INVALID_VERSION error.
// WARNING: Setting an incorrect version causes the migrator to skip migrations
// (if too high) or re-run already-applied migrations (if too low).
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the migration source and database handle.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()

	var component string
	switch {
	case srcErr != nil && dbErr != nil:
		component = "both"
	case srcErr != nil:
		component = "source"
	case dbErr != nil:
		component = "database"
	default:
		return nil
	}
	return oops.Code("MIGRATION_CLOSE_FAILED").With("component", component).Wrap(errors.Join(srcErr, dbErr))
}

// PendingMigrations returns the migrations Up would apply, oldest first.
func (m *Migrator) PendingMigrations() ([]Migration, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}
	all, err := Migrations(m.dialect)
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}
	return splitAt(all, current)[1], nil
}

// AppliedMigrations returns the migrations at or below the current version,
// oldest first.
func (m *Migrator) AppliedMigrations() ([]Migration, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}
	all, err := Migrations(m.dialect)
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}
	return splitAt(all, current)[0], nil
}

// MigrationStatus is a snapshot of the schema state.
type MigrationStatus struct {
	Dialect Dialect
	Version uint
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// Status reads the schema version once and partitions the known migrations.
func (m *Migrator) Status() (*MigrationStatus, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get migration status").Wrap(err)
	}
	all, err := Migrations(m.dialect)
	if err != nil {
		return nil, oops.With("operation", "get migration status").Wrap(err)
	}
	parts := splitAt(all, version)
	return &MigrationStatus{
		Dialect: m.dialect,
		Version: version,
		Dirty:   dirty,
		Applied: parts[0],
		Pending: parts[1],
	}, nil
}

// splitAt partitions sorted migrations into those at or below version and
// those above it.
func splitAt(all []Migration, version uint) [2][]Migration {
	var parts [2][]Migration
	for _, mig := range all {
		if mig.Version <= version {
			parts[0] = append(parts[0], mig)
		} else {
			parts[1] = append(parts[1], mig)
		}
	}
	return parts
}
