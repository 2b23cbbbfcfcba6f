// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/samber/oops"
)

// Migration identifies one embedded schema migration.
type Migration struct {
	Version uint
	Name    string // NNNNNN_identifier, e.g. 000001_users
}

// catalog indexes the embedded up migrations per dialect. The embedded FS is
// immutable, so it is built once.
var catalog = sync.OnceValues(func() (map[Dialect][]Migration, error) {
	out := make(map[Dialect][]Migration, 2)
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		migrations, err := readMigrations(d)
		if err != nil {
			return nil, err
		}
		out[d] = migrations
	}
	return out, nil
})

// readMigrations lists the dialect's up migrations in version order.
// Files golang-migrate cannot parse are logged and skipped;
// TestMigrationsFS_EmbeddedFiles guards the naming pattern.
func readMigrations(dialect Dialect) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir(dialect))
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").
			With("operation", "read migrations dir").
			With("dialect", string(dialect)).
			Wrap(err)
	}

	var migrations []Migration
	for _, entry := range entries {
		parsed, err := source.Parse(entry.Name())
		if err != nil {
			slog.Warn("skipping migration file with unexpected name",
				"filename", entry.Name(),
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		if parsed.Direction != source.Up {
			continue
		}
		migrations = append(migrations, Migration{
			Version: parsed.Version,
			Name:    fmt.Sprintf("%06d_%s", parsed.Version, parsed.Identifier),
		})
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return int(a.Version) - int(b.Version)
	})
	return migrations, nil
}

// Migrations returns a copy of the dialect's embedded migrations, oldest first.
func Migrations(dialect Dialect) ([]Migration, error) {
	all, err := catalog()
	if err != nil {
		return nil, err
	}
	migrations, ok := all[dialect]
	if !ok {
		return nil, oops.Code("MIGRATION_LIST_FAILED").
			With("dialect", string(dialect)).
			Errorf("no migrations for dialect")
	}
	return slices.Clone(migrations), nil
}

// MigrationName returns the name of the migration with the given version,
// or "" when the dialect has no such version.
func MigrationName(dialect Dialect, version uint) (string, error) {
	migrations, err := Migrations(dialect)
	if err != nil {
		return "", err
	}
	for _, m := range migrations {
		if m.Version == version {
			return m.Name, nil
		}
	}
	return "", nil
}
