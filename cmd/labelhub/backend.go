// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/labelhub/internal/auth"
	authpg "github.com/holomush/labelhub/internal/auth/postgres"
	authsqlite "github.com/holomush/labelhub/internal/auth/sqlite"
	"github.com/holomush/labelhub/internal/config"
	"github.com/holomush/labelhub/internal/store"
)

// Backend is an opened credential store.
type Backend struct {
	Dialect  store.Dialect
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	// Ping reports whether the database still answers.
	Ping func(ctx context.Context) error
	// Close releases the connection pool.
	Close func()
}

// openBackend connects to DATABASE_URL, applies migrations when enabled and
// builds the repositories for its dialect.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	dialect, dsn, err := store.ParseDatabaseURL(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case store.DialectPostgres:
		return openPostgresBackend(ctx, cfg, dsn, logger)
	case store.DialectSQLite:
		return openSQLiteBackend(ctx, cfg, dsn, logger)
	default:
		return nil, oops.Code("DATABASE_URL_INVALID").
			With("dialect", string(dialect)).
			Errorf("unsupported dialect")
	}
}

func openPostgresBackend(ctx context.Context, cfg *config.Config, dsn string, logger *slog.Logger) (*Backend, error) {
	pool, err := store.OpenPostgres(ctx, dsn, store.ConnectOptions{
		MaxRetries: cfg.Database.ConnectRetries,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Backend{
		Dialect:  store.DialectPostgres,
		Users:    authpg.NewUserRepository(pool),
		Sessions: authpg.NewSessionRepository(pool),
		Ping:     pool.Ping,
		Close:    pool.Close,
	}, nil
}

func openSQLiteBackend(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (*Backend, error) {
	db, err := store.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := store.MigrateSQLite(db); err != nil {
			_ = db.Close() //nolint:errcheck // migration error takes precedence
			return nil, err
		}
		logger.Info("database migrations applied", "dialect", string(store.DialectSQLite))
	}

	return &Backend{
		Dialect:  store.DialectSQLite,
		Users:    authsqlite.NewUserRepository(db),
		Sessions: authsqlite.NewSessionRepository(db),
		Ping:     db.PingContext,
		Close: func() {
			if err := db.Close(); err != nil {
				logger.Warn("error closing sqlite database", "error", err)
			}
		},
	}, nil
}

// migrateUp applies pending migrations through a dedicated migrator connection.
func migrateUp(databaseURL string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
	}
	if len(pending) == 0 {
		logger.Debug("database schema is current")
		return nil
	}
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database migrations applied", "count", len(pending), "dialect", string(migrator.Dialect()))
	return nil
}
