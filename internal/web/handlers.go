// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/pkg/errutil"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

//go:embed dashboard.html
var dashboardHTML []byte

// AuthService is the account and session API the handlers use.
type AuthService interface {
	SessionValidator
	Register(ctx context.Context, input auth.RegisterInput) (*auth.User, error)
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*auth.Session, string, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, userID ulid.ULID) (*auth.User, error)
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.svc.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	s.logger.InfoContext(r.Context(), "user registered", "user_id", user.ID.String())
	writeMessage(w, http.StatusCreated, "User registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, token, err := s.svc.Login(r.Context(), req.Email, req.Password,
		r.UserAgent(), clientIP(r, s.trustProxy))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	if err := s.cookies.Set(w, token, session.ExpiresAt); err != nil {
		// The session exists but the client can never present it.
		//nolint:errcheck // best-effort cleanup, the cookie error is reported
		s.svc.Logout(r.Context(), token)
		writeError(w, r, s.logger, err)
		return
	}

	s.logger.InfoContext(r.Context(), "user logged in",
		"user_id", session.UserID.String(),
		"session_id", session.ID.String(),
	)
	writeMessage(w, http.StatusOK, "Login successful")
}

// handleLogout is idempotent: a missing or unverifiable cookie still logs out.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := s.cookies.Token(r)
	if err == nil {
		if err := s.svc.Logout(r.Context(), token); err != nil {
			errutil.LogErrorContext(r.Context(), s.logger, "logout failed", err)
			writeMessage(w, http.StatusInternalServerError, msgLogoutFailed)
			return
		}
	}
	s.cookies.Clear(w)
	writeMessage(w, http.StatusOK, "Logout successful")
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, msgNotLoggedIn)
		return
	}

	user, err := s.svc.CurrentUser(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		CompanyName: user.CompanyName,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may have disconnected
	w.Write(dashboardHTML)
}
