// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/labelhub/internal/auth"
	authpg "github.com/holomush/labelhub/internal/auth/postgres"
	authsqlite "github.com/holomush/labelhub/internal/auth/sqlite"
	"github.com/holomush/labelhub/internal/store"
	"github.com/holomush/labelhub/internal/web"
)

// stack is a running web server over a real credential store.
type stack struct {
	baseURL  string
	server   *web.Server
	sessions auth.SessionRepository
	cleanup  []func()
}

func (s *stack) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	Expect(s.server.Stop(ctx)).To(Succeed())
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

// backendFactory opens repositories for one dialect and registers cleanups.
type backendFactory func(ctx context.Context, s *stack) (auth.UserRepository, auth.SessionRepository)

func sqliteBackend(ctx context.Context, s *stack) (auth.UserRepository, auth.SessionRepository) {
	dir, err := os.MkdirTemp("", "labelhub-it-*")
	Expect(err).NotTo(HaveOccurred())
	s.cleanup = append(s.cleanup, func() { _ = os.RemoveAll(dir) })

	db, err := store.OpenSQLite(ctx, filepath.Join(dir, "labelhub.db"))
	Expect(err).NotTo(HaveOccurred())
	s.cleanup = append(s.cleanup, func() { _ = db.Close() })
	Expect(store.MigrateSQLite(db)).To(Succeed())

	return authsqlite.NewUserRepository(db), authsqlite.NewSessionRepository(db)
}

var (
	pgOnce      sync.Once
	pgContainer testcontainers.Container
	pgConnStr   string
	pgErr       error
)

// sharedPostgres starts one PostgreSQL container for the whole suite.
func sharedPostgres(ctx context.Context) (string, error) {
	pgOnce.Do(func() {
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("labelhub_test"),
			postgres.WithUsername("labelhub"),
			postgres.WithPassword("labelhub"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgContainer = container

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgErr = err
			return
		}

		migrator, err := store.NewMigrator(connStr)
		if err != nil {
			pgErr = err
			return
		}
		defer func() { _ = migrator.Close() }()
		if err := migrator.Up(); err != nil {
			pgErr = err
			return
		}
		pgConnStr = connStr
	})
	return pgConnStr, pgErr
}

func postgresBackend(ctx context.Context, s *stack) (auth.UserRepository, auth.SessionRepository) {
	connStr, err := sharedPostgres(ctx)
	Expect(err).NotTo(HaveOccurred())

	pool, err := store.OpenPostgres(ctx, connStr, store.ConnectOptions{MaxRetries: 3})
	Expect(err).NotTo(HaveOccurred())
	s.cleanup = append(s.cleanup, pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE sessions, users")
	Expect(err).NotTo(HaveOccurred())

	return authpg.NewUserRepository(pool), authpg.NewSessionRepository(pool)
}

// startStack wires the service and web server over the backend.
func startStack(ctx context.Context, open backendFactory) *stack {
	s := &stack{}
	users, sessions := open(ctx, s)
	s.sessions = sessions

	logger := slog.New(slog.DiscardHandler)
	svc, err := auth.NewService(users, sessions, auth.NewArgon2idHasher(), auth.WithLogger(logger))
	Expect(err).NotTo(HaveOccurred())

	cookies, err := web.NewCookieCodec(web.CookieOptions{
		Name:   "labelhub_session",
		Secret: []byte("integration-secret"),
	})
	Expect(err).NotTo(HaveOccurred())

	server, err := web.NewServer(svc, web.Options{
		Addr:      "127.0.0.1:0",
		Cookies:   cookies,
		RateLimit: 1000,
		RateBurst: 1000,
		Logger:    logger,
	})
	Expect(err).NotTo(HaveOccurred())
	_, err = server.Start()
	Expect(err).NotTo(HaveOccurred())

	s.server = server
	s.baseURL = "http://" + server.Addr()
	return s
}

// client is a browser-like HTTP client with a cookie jar.
type client struct {
	http    *http.Client
	baseURL string
}

func (s *stack) newClient() *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{
		http:    &http.Client{Jar: jar, Timeout: 10 * time.Second},
		baseURL: s.baseURL,
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) message() string {
	var body struct {
		Message string `json:"message"`
	}
	Expect(json.Unmarshal(r.body, &body)).To(Succeed(), string(r.body))
	return body.Message
}

func (c *client) do(method, path string, payload any) response {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	Expect(err).NotTo(HaveOccurred())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

func terminatePostgres() {
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
}

// farFuture is a time after every session created by the suite expires.
func farFuture() time.Time {
	return time.Now().Add(10 * 365 * 24 * time.Hour)
}
