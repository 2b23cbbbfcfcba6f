// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/labelhub/internal/config"
	"github.com/holomush/labelhub/pkg/errutil"
)

var validEnv = map[string]string{
	"DATABASE_URL":   "sqlite://labelhub.db",
	"SESSION_SECRET": "test-secret",
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.MetricsAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, config.SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "labelhub_session", cfg.Session.CookieName)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Database.URL)
	require.NoError(t, cfg.ValidateOptions())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), nil, validEnv)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "sqlite://labelhub.db", cfg.Database.URL)
	assert.Equal(t, "test-secret", cfg.Session.Secret)
	require.NoError(t, cfg.Validate())
}

func TestLoad_PortFromEnvironment(t *testing.T) {
	env := map[string]string{"PORT": "8080"}
	cfg, err := config.LoadWithEnv("", nil, env)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := config.LoadWithEnv("", nil, map[string]string{"PORT": "eighty"})
	errutil.AssertErrorCode(t, err, "CONFIG_ENV_INVALID")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:4000"
  shutdown_timeout: 30s
session:
  store: database
  ttl: 2h
web:
  allowed_origins:
    - "https://*.example.com"
log:
  format: text
`)
	cfg, err := config.LoadWithEnv(path, nil, map[string]string{"PORT": "8080"})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr, "explicit addr wins over PORT")
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, config.SessionStoreDatabase, cfg.Session.Store)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"https://*.example.com"}, cfg.Web.AllowedOrigins)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "labelhub_session", cfg.Session.CookieName, "unset keys keep defaults")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := config.LoadWithEnv(path, nil, validEnv)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_INVALID")
}

func TestLoad_EnvAutoMigrate(t *testing.T) {
	env := map[string]string{"LABELHUB_DB_AUTO_MIGRATE": "false"}
	cfg, err := config.LoadWithEnv("", nil, env)
	require.NoError(t, err)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
session:
  store: database
log:
  level: warn
`)
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--session-store=memory",
		"--addr=:9999",
		"--session-ttl=90m",
		"--allowed-origin=https://a.example.com",
		"--allowed-origin=https://b.example.com",
	}))

	cfg, err := config.LoadWithEnv(path, flags, validEnv)
	require.NoError(t, err)
	assert.Equal(t, config.SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 90*time.Minute, cfg.Session.TTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Web.AllowedOrigins)
	assert.Equal(t, "warn", cfg.Log.Level, "unchanged flags do not override the file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.Config)
		wantField string
	}{
		{"missing database url", func(c *config.Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"unsupported database url", func(c *config.Config) { c.Database.URL = "mysql://x" }, "DATABASE_URL"},
		{"missing secret", func(c *config.Config) { c.Session.Secret = "" }, "SESSION_SECRET"},
		{"bad addr", func(c *config.Config) { c.Server.Addr = "nope" }, "server.addr"},
		{"bad store", func(c *config.Config) { c.Session.Store = "redis" }, "session.store"},
		{"zero ttl", func(c *config.Config) { c.Session.TTL = 0 }, "session.ttl"},
		{"zero janitor", func(c *config.Config) { c.Session.JanitorInterval = 0 }, "session.janitor_interval"},
		{"empty cookie", func(c *config.Config) { c.Session.CookieName = "" }, "session.cookie_name"},
		{"zero rate", func(c *config.Config) { c.Web.RateLimit = 0 }, "web.rate_limit"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Database.URL = "postgres://localhost/labelhub"
			cfg.Session.Secret = "secret"
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.wantField)
		})
	}
}

func TestPresence(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Secret = "hunter2"

	assert.Equal(t, map[string]bool{"DATABASE_URL": false, "SESSION_SECRET": true}, cfg.Presence())
}
