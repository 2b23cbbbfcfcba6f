// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/internal/auth/memory"
	"github.com/holomush/labelhub/internal/web"
)

const testSecret = "test-session-secret"

// plainHasher avoids argon2id cost in handler tests.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error)    { return "plain$" + p, nil }
func (plainHasher) Verify(p, h string) (bool, error) { return h == "plain$"+p, nil }
func (plainHasher) NeedsUpgrade(string) bool         { return false }

type fixture struct {
	server   *web.Server
	handler  http.Handler
	svc      *auth.Service
	users    *memory.UserRepository
	sessions *memory.SessionRepository
	cookies  *web.CookieCodec
}

func newCookieCodec(t *testing.T) *web.CookieCodec {
	t.Helper()
	codec, err := web.NewCookieCodec(web.CookieOptions{
		Name:   "labelhub_session",
		Secret: []byte(testSecret),
	})
	require.NoError(t, err)
	return codec
}

func newFixture(t *testing.T, mutate ...func(*web.Options)) *fixture {
	t.Helper()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository()
	svc, err := auth.NewService(users, sessions, plainHasher{},
		auth.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	cookies := newCookieCodec(t)
	opts := web.Options{
		Addr:      "127.0.0.1:0",
		Cookies:   cookies,
		RateLimit: 1000,
		RateBurst: 1000,
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv, err := web.NewServer(svc, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return &fixture{
		server:   srv,
		handler:  srv.Handler(),
		svc:      svc,
		users:    users,
		sessions: sessions,
		cookies:  cookies,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return serve(f.handler, method, path, body, cookies...)
}

func serve(h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const registerAda = `{"email":"ada@example.com","password":"password1","firstName":"Ada","lastName":"Lovelace","companyName":"Engines Ltd."}`

// registerAndLogin creates the default account and returns its session cookie.
func (f *fixture) registerAndLogin(t *testing.T) *http.Cookie {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/register", registerAda)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/login", `{"email":"ada@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "labelhub_session" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Message
}

// stubService overrides individual AuthService methods. Calling a method
// that was not set panics through the nil embedded interface.
type stubService struct {
	web.AuthService
	validate    func(ctx context.Context, token string) (*auth.Session, error)
	currentUser func(ctx context.Context, id ulid.ULID) (*auth.User, error)
	logout      func(ctx context.Context, token string) error
	register    func(ctx context.Context, in auth.RegisterInput) (*auth.User, error)
}

func (s *stubService) ValidateSession(ctx context.Context, token string) (*auth.Session, error) {
	return s.validate(ctx, token)
}

func (s *stubService) CurrentUser(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return s.currentUser(ctx, id)
}

func (s *stubService) Logout(ctx context.Context, token string) error {
	return s.logout(ctx, token)
}

func (s *stubService) Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error) {
	return s.register(ctx, in)
}

func newStubServer(t *testing.T, svc *stubService) (http.Handler, *web.CookieCodec) {
	t.Helper()
	cookies := newCookieCodec(t)
	srv, err := web.NewServer(svc, web.Options{
		Cookies:   cookies,
		RateLimit: 1000,
		RateBurst: 1000,
		Logger:    slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv.Handler(), cookies
}

func signedCookie(t *testing.T, codec *web.CookieCodec, token string) *http.Cookie {
	t.Helper()
	value, err := codec.Encode(token, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return &http.Cookie{Name: codec.Name(), Value: value}
}
