// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/store"
	"github.com/holomush/labelhub/pkg/errutil"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantDialect store.Dialect
		wantDSN     string
	}{
		{"postgres scheme", "postgres://u:p@db:5432/labelhub", store.DialectPostgres, "postgres://u:p@db:5432/labelhub"},
		{"postgresql scheme", "postgresql://db/labelhub", store.DialectPostgres, "postgresql://db/labelhub"},
		{"sqlite file", "sqlite://./data/labelhub.db", store.DialectSQLite, "./data/labelhub.db"},
		{"sqlite memory", "sqlite://:memory:", store.DialectSQLite, ":memory:"},
		{"surrounding whitespace", "  sqlite:///var/lib/labelhub.db\n", store.DialectSQLite, "/var/lib/labelhub.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialect, dsn, err := store.ParseDatabaseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDialect, dialect)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}

func TestParseDatabaseURL_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "mongodb://localhost/labelhub", "sqlite://", "labelhub.db"} {
		t.Run(raw, func(t *testing.T) {
			_, _, err := store.ParseDatabaseURL(raw)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "DATABASE_URL_INVALID")
		})
	}
}
