// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the labelhub HTTP API and dashboard page.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/labelhub/internal/observability"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address in "host:port" form.
	Addr              string
	ReadHeaderTimeout time.Duration
	Cookies           *CookieCodec
	// AllowedOrigins are extra Origin globs accepted for POST requests.
	AllowedOrigins []string
	// RateLimit and RateBurst bound login and register attempts per client.
	RateLimit  int
	RateBurst  int
	TrustProxy bool
	// Metrics records request counts and latency. Optional.
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Server is the labelhub application HTTP server.
type Server struct {
	addr       string
	svc        AuthService
	cookies    *CookieCodec
	gate       *Gate
	throttle   *Throttle
	origins    *OriginGuard
	metrics    *observability.Metrics
	logger     *slog.Logger
	trustProxy bool
	readHeader time.Duration

	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// NewServer validates opts and builds the route table.
func NewServer(svc AuthService, opts Options) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if opts.Cookies == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("cookie codec is required")
	}
	if opts.RateLimit < 1 || opts.RateBurst < 1 {
		return nil, oops.Code("WEB_INVALID_CONFIG").
			With("rate_limit", opts.RateLimit).
			With("rate_burst", opts.RateBurst).
			Errorf("rate limit and burst must be at least 1")
	}
	origins, err := NewOriginGuard(opts.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	readHeader := opts.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 10 * time.Second
	}

	s := &Server{
		addr:       opts.Addr,
		svc:        svc,
		cookies:    opts.Cookies,
		gate:       NewGate(svc, opts.Cookies, logger),
		throttle:   NewThrottle(opts.RateLimit, opts.RateBurst, opts.TrustProxy),
		origins:    origins,
		metrics:    opts.Metrics,
		logger:     logger,
		trustProxy: opts.TrustProxy,
		readHeader: readHeader,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, instrument(pattern, s.metrics, s.logger, h))
	}

	handle("POST /api/register", s.origins.Wrap(s.throttle.Wrap("register", http.HandlerFunc(s.handleRegister))))
	handle("POST /api/login", s.origins.Wrap(s.throttle.Wrap("login", http.HandlerFunc(s.handleLogin))))
	handle("POST /api/logout", s.origins.Wrap(http.HandlerFunc(s.handleLogout)))
	handle("GET /api/user", s.gate.RequireJSON(http.HandlerFunc(s.handleUser)))
	handle("GET /dashboard", s.gate.RequirePage(http.HandlerFunc(s.handleDashboard)))

	return mux
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeader,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server and releases the throttle.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return s.closeThrottle()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return s.closeThrottle()
}

func (s *Server) closeThrottle() error {
	s.closeOnce.Do(func() { s.closeErr = s.throttle.Close() })
	return s.closeErr
}

// Addr returns the listen address, or empty if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
