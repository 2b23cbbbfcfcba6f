// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/internal/store"
)

// openTestDB returns a migrated in-memory database closed at test end.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.MigrateSQLite(db))
	return db
}

func newTestUser(t *testing.T, email string) *auth.User {
	t.Helper()
	user, err := auth.NewUser(email, "$argon2id$hash", "Test", "User", "Acme")
	require.NoError(t, err)
	return user
}
