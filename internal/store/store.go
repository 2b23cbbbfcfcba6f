// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens database connections and manages schema migrations.
//
// Two dialects are supported: PostgreSQL (postgres:// or postgresql:// URLs)
// and SQLite (sqlite://<path> URLs, using the pure Go modernc driver).
package store

import (
	"strings"

	"github.com/samber/oops"
)

// Dialect identifies the SQL database family behind a DATABASE_URL.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqliteScheme prefixes SQLite database URLs.
const sqliteScheme = "sqlite://"

// ParseDatabaseURL determines the dialect of a database URL and returns the
// connection string the driver expects. For PostgreSQL that is the URL itself;
// for SQLite it is the file path (or :memory:).
func ParseDatabaseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", "", oops.Code("DATABASE_URL_INVALID").Errorf("database URL is empty")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(raw, sqliteScheme):
		path := strings.TrimPrefix(raw, sqliteScheme)
		if path == "" {
			return "", "", oops.Code("DATABASE_URL_INVALID").Errorf("sqlite URL has no path")
		}
		return DialectSQLite, path, nil
	default:
		scheme, _, _ := strings.Cut(raw, "://")
		return "", "", oops.Code("DATABASE_URL_INVALID").
			With("scheme", scheme).
			Errorf("unsupported database URL scheme")
	}
}
