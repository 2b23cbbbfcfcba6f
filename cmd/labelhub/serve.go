// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/internal/auth/memory"
	"github.com/holomush/labelhub/internal/config"
	"github.com/holomush/labelhub/internal/logging"
	"github.com/holomush/labelhub/internal/web"
)

// serviceName tags every log record.
const serviceName = "labelhub"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the HTTP server for the account API and dashboard.

DATABASE_URL and SESSION_SECRET must be set in the environment. PORT sets
the listen port when --addr and server.addr are not given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	logger.Info("starting labelhub",
		"addr", cfg.Server.Addr,
		"session_store", cfg.Session.Store,
		"secrets", cfg.Presence(),
	)

	backend, err := deps.BackendOpener(ctx, cfg, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open credential store").Wrap(err)
	}
	defer backend.Close()
	logger.Info("connected to database", "dialect", string(backend.Dialect))

	sessions := backend.Sessions
	if cfg.Session.Store == config.SessionStoreMemory {
		sessions = memory.NewSessionRepository()
	}

	obsServer := deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		if err := backend.Ping(ctx); err != nil {
			return oops.Code("DB_UNREACHABLE").With("dialect", string(backend.Dialect)).Wrap(err)
		}
		return nil
	})
	auth.RegisterMetrics(obsServer.Registerer())

	svc, err := auth.NewService(backend.Users, sessions, deps.HasherFactory(),
		auth.WithLogger(logger),
		auth.WithSessionTTL(cfg.Session.TTL),
	)
	if err != nil {
		return err
	}

	cookies, err := web.NewCookieCodec(web.CookieOptions{
		Name:   cfg.Session.CookieName,
		Secret: []byte(cfg.Session.Secret),
		Secure: cfg.Session.CookieSecure,
	})
	if err != nil {
		return err
	}

	webServer, err := web.NewServer(svc, web.Options{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		Cookies:           cookies,
		AllowedOrigins:    cfg.Web.AllowedOrigins,
		RateLimit:         cfg.Web.RateLimit,
		RateBurst:         cfg.Web.RateBurst,
		TrustProxy:        cfg.Web.TrustProxy,
		Metrics:           obsServer.Metrics(),
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErrChan, err := webServer.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	shutdown := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := webServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping web server", "error", err)
		}
		if cfg.Server.MetricsAddr != "" {
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}
	}

	if cfg.Server.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdown()
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		svc.RunSessionJanitor(ctx, cfg.Session.JanitorInterval)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("Server running on %s\n", webServer.Addr())
	logger.Info("labelhub ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	cancel()
	shutdown()
	<-janitorDone

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
