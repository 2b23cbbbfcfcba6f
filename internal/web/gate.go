// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/pkg/errutil"
)

// SessionValidator resolves a session token to a live session.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
}

type sessionKey struct{}

// SessionFromContext returns the session stored by the Gate middleware.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*auth.Session)
	return s, ok && s != nil
}

func contextWithSession(ctx context.Context, s *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// Gate admits requests that carry a valid session cookie.
type Gate struct {
	sessions SessionValidator
	cookies  *CookieCodec
	logger   *slog.Logger
}

// NewGate creates a Gate.
func NewGate(sessions SessionValidator, cookies *CookieCodec, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{sessions: sessions, cookies: cookies, logger: logger}
}

// Authorize verifies the request's cookie and session.
func (g *Gate) Authorize(r *http.Request) (*auth.Session, error) {
	token, err := g.cookies.Token(r)
	if err != nil {
		return nil, err
	}
	return g.sessions.ValidateSession(r.Context(), token)
}

// RequireJSON rejects unauthorized API requests with a JSON 401.
func (g *Gate) RequireJSON(next http.Handler) http.Handler {
	return g.require(next, func(w http.ResponseWriter, status int) {
		if status == http.StatusUnauthorized {
			writeMessage(w, status, msgNotLoggedIn)
			return
		}
		writeMessage(w, status, msgServerError)
	})
}

// RequirePage rejects unauthorized page requests with a plain-text 401.
func (g *Gate) RequirePage(next http.Handler) http.Handler {
	return g.require(next, func(w http.ResponseWriter, status int) {
		if status == http.StatusUnauthorized {
			writeText(w, status, msgPleaseLogIn)
			return
		}
		writeText(w, status, msgServerError)
	})
}

func (g *Gate) require(next http.Handler, reject func(http.ResponseWriter, int)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := g.Authorize(r)
		if err != nil {
			if !isUnauthorized(err) {
				errutil.LogErrorContext(r.Context(), g.logger, "session check failed", err)
				reject(w, http.StatusInternalServerError)
				return
			}
			if errutil.Code(err) != "COOKIE_MISSING" {
				g.cookies.Clear(w)
			}
			reject(w, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), session)))
	})
}
