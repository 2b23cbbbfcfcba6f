// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectRetries   = 5
	DefaultConnectBaseDelay = 500 * time.Millisecond
)

// ConnectOptions controls how OpenPostgres waits for the database.
type ConnectOptions struct {
	// MaxRetries is the number of additional ping attempts after the first.
	MaxRetries uint64
	// BaseDelay is the initial exponential backoff delay.
	BaseDelay time.Duration
	// Logger receives a warning for every failed attempt.
	Logger *slog.Logger
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultConnectBaseDelay
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// OpenPostgres creates a connection pool and pings the server until it answers
// or the retry budget is spent. A database that is still starting up (common
// under docker compose) is waited for with exponential backoff.
func OpenPostgres(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse postgres config").
			Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create postgres pool").
			Wrap(err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.BaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			opts.Logger.WarnContext(ctx, "database not reachable, retrying",
				"attempt", attempt,
				"error", pingErr.Error())
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_UNREACHABLE").
			With("operation", "ping postgres").
			With("attempts", attempt).
			Wrap(err)
	}

	return pool, nil
}
