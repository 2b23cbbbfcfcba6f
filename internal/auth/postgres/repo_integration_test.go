// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/internal/auth/postgres"
)

func createTestUser(ctx context.Context, t *testing.T, email string) *auth.User {
	t.Helper()
	user, err := auth.NewUser(email, "$argon2id$hash", "Test", "User", "")
	require.NoError(t, err)
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Microsecond)
	user.UpdatedAt = user.CreatedAt

	require.NoError(t, postgres.NewUserRepository(testPool).Create(ctx, user))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
	})
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("round trip", func(t *testing.T) {
		user := createTestUser(ctx, t, "roundtrip@example.com")

		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, stored.Email)
		assert.Equal(t, user.PasswordHash, stored.PasswordHash)
		assert.True(t, user.CreatedAt.Equal(stored.CreatedAt))
	})

	t.Run("email lookup ignores case", func(t *testing.T) {
		user := createTestUser(ctx, t, "mixed@example.com")

		stored, err := repo.GetByEmail(ctx, "MIXED@Example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.ID)
	})

	t.Run("duplicate email in different case is rejected", func(t *testing.T) {
		createTestUser(ctx, t, "dup@example.com")

		other, err := auth.NewUser("dup@example.com", "$argon2id$hash", "Other", "User", "")
		require.NoError(t, err)
		other.Email = "DUP@example.com"

		err = repo.Create(ctx, other)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("concurrent registration admits exactly one", func(t *testing.T) {
		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u, err := auth.NewUser("race@example.com", "$argon2id$hash", "Race", "User", "")
				if err != nil {
					errs[i] = err
					return
				}
				errs[i] = repo.Create(ctx, u)
			}(i)
		}
		wg.Wait()
		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE email = 'race@example.com'`)
		})

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
				continue
			}
			assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
		}
		assert.Equal(t, 1, successes)
	})

	t.Run("update lockout fields", func(t *testing.T) {
		user := createTestUser(ctx, t, "lock@example.com")
		now := time.Now().UTC().Truncate(time.Microsecond)
		for range auth.LockoutThreshold {
			user.RecordFailure(now)
		}
		require.NoError(t, repo.Update(ctx, user))

		stored, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.LockoutThreshold, stored.FailedAttempts)
		require.NotNil(t, stored.LockedUntil)
		assert.True(t, stored.IsLockedAt(now))
	})
}

func TestSessionRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewSessionRepository(testPool)
	user := createTestUser(ctx, t, "sessions@example.com")

	newSession := func(t *testing.T, expiresIn time.Duration) (*auth.Session, string) {
		t.Helper()
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		now := time.Now().UTC().Truncate(time.Microsecond)
		created := now
		if expiresIn < 0 {
			created = now.Add(2 * expiresIn)
		}
		s, err := auth.NewSession(user.ID, hash, "agent", "127.0.0.1", created, now.Add(expiresIn))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
		return s, token
	}

	t.Run("create and lookup by hash", func(t *testing.T) {
		s, token := newSession(t, time.Hour)

		stored, err := repo.GetByTokenHash(ctx, auth.HashSessionToken(token))
		require.NoError(t, err)
		assert.Equal(t, s.ID, stored.ID)
		assert.Equal(t, user.ID, stored.UserID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s, _ := newSession(t, time.Hour)

		require.NoError(t, repo.DeleteByTokenHash(ctx, s.TokenHash))
		require.NoError(t, repo.DeleteByTokenHash(ctx, s.TokenHash))

		_, err := repo.GetByTokenHash(ctx, s.TokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("delete expired keeps live sessions", func(t *testing.T) {
		expired, _ := newSession(t, -time.Minute)
		live, _ := newSession(t, time.Hour)

		n, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = repo.GetByTokenHash(ctx, expired.TokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		_, err = repo.GetByTokenHash(ctx, live.TokenHash)
		assert.NoError(t, err)
	})

	t.Run("update last seen on missing session", func(t *testing.T) {
		err := repo.UpdateLastSeen(ctx, ulid.Make(), time.Now())
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
