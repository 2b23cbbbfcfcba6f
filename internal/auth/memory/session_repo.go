// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/labelhub/internal/auth"
)

// SessionRepository implements auth.SessionRepository in memory, keyed by
// token hash. Sessions do not survive a restart.
type SessionRepository struct {
	mu       sync.RWMutex
	byHash   map[string]*auth.Session
	hashByID map[ulid.ULID]string
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byHash:   make(map[string]*auth.Session),
		hashByID: make(map[ulid.ULID]string),
	}
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[session.TokenHash]; exists {
		return oops.Code("SESSION_CREATE_FAILED").
			With("session_id", session.ID.String()).
			Errorf("token hash already in use")
	}
	c := *session
	r.byHash[session.TokenHash] = &c
	r.hashByID[session.ID] = session.TokenHash
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	c := *session
	return &c, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *SessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash, ok := r.hashByID[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	r.byHash[hash].LastSeenAt = lastSeen
	return nil
}

// DeleteByTokenHash removes a session. Removing an absent session is not an error.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.byHash[tokenHash]; ok {
		r.remove(session)
	}
	return nil
}

// DeleteByUser removes all sessions for a user.
func (r *SessionRepository) DeleteByUser(_ context.Context, userID ulid.ULID) (int64, error) {
	return r.deleteWhere(func(s *auth.Session) bool { return s.UserID == userID }), nil
}

// DeleteExpired removes all sessions that expired before now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(s *auth.Session) bool { return s.ExpiresAt.Before(now) }), nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHash)
}

func (r *SessionRepository) deleteWhere(match func(*auth.Session) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, session := range r.byHash {
		if match(session) {
			r.remove(session)
			n++
		}
	}
	return n
}

// remove must be called with mu held.
func (r *SessionRepository) remove(session *auth.Session) {
	delete(r.byHash, session.TokenHash)
	delete(r.hashByID, session.ID)
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
