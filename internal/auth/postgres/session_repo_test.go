// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/internal/auth/postgres"
	"github.com/holomush/labelhub/pkg/errutil"
)

var sessionCols = []string{
	"id", "user_id", "token_hash", "user_agent", "ip_address", "expires_at", "created_at", "last_seen_at",
}

func sampleSession() *auth.Session {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &auth.Session{
		ID:         ulid.Make(),
		UserID:     ulid.Make(),
		TokenHash:  auth.HashSessionToken("token"),
		UserAgent:  "curl/8.0",
		IPAddress:  "10.0.0.1",
		ExpiresAt:  now.Add(auth.DefaultSessionTTL),
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := sampleSession()
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(s.ID.String(), s.UserID.String(), s.TokenHash, s.UserAgent, s.IPAddress,
			s.ExpiresAt, s.CreatedAt, s.LastSeenAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, postgres.NewSessionRepository(mock).Create(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	t.Run("returns session", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		s := sampleSession()
		mock.ExpectQuery("SELECT .+ FROM sessions").
			WithArgs(s.TokenHash).
			WillReturnRows(pgxmock.NewRows(sessionCols).AddRow(
				s.ID.String(), s.UserID.String(), s.TokenHash, s.UserAgent, s.IPAddress,
				s.ExpiresAt, s.CreatedAt, s.LastSeenAt,
			))

		got, err := postgres.NewSessionRepository(mock).GetByTokenHash(context.Background(), s.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	})

	t.Run("missing session is not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT .+ FROM sessions").
			WithArgs("absent").
			WillReturnRows(pgxmock.NewRows(sessionCols))

		_, err = postgres.NewSessionRepository(mock).GetByTokenHash(context.Background(), "absent")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_UpdateLastSeen(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updates", affected: 1},
		{name: "missing session", affected: 0, wantErr: auth.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := ulid.Make()
			seen := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			mock.ExpectExec("UPDATE sessions SET last_seen_at").
				WithArgs(id.String(), seen).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err = postgres.NewSessionRepository(mock).UpdateLastSeen(context.Background(), id, seen)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionRepository_DeleteByTokenHash(t *testing.T) {
	t.Run("absent session is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM sessions WHERE token_hash").
			WithArgs("hash").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.NoError(t, postgres.NewSessionRepository(mock).DeleteByTokenHash(context.Background(), "hash"))
	})

	t.Run("store failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM sessions WHERE token_hash").
			WithArgs("hash").
			WillReturnError(errors.New("connection lost"))

		err = postgres.NewSessionRepository(mock).DeleteByTokenHash(context.Background(), "hash")
		errutil.AssertErrorCode(t, err, "SESSION_DELETE_FAILED")
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := postgres.NewSessionRepository(mock).DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSessionRepository_DeleteByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := ulid.Make()
	mock.ExpectExec("DELETE FROM sessions WHERE user_id").
		WithArgs(userID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := postgres.NewSessionRepository(mock).DeleteByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
