// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads labelhub configuration.
//
// Values are layered in this order, later sources winning: built-in
// defaults, the YAML config file, environment variables, then command-line
// flags that were explicitly set. Secrets (DATABASE_URL, SESSION_SECRET) are
// read from the environment only and never appear in the config file.
package config

import (
	"errors"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/labelhub/internal/store"
)

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStoreDatabase = "database"
)

// DefaultPort is the listen port when neither server.addr nor PORT is set.
const DefaultPort = 3000

// Config is the complete labelhub configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Session  SessionConfig  `koanf:"session" yaml:"session"`
	Web      WebConfig      `koanf:"web" yaml:"web"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Cart     CartConfig     `koanf:"cart" yaml:"cart"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	// Addr is the application listen address. Empty means ":$PORT".
	Addr string `koanf:"addr" yaml:"addr" jsonschema:"description=Application listen address; empty uses :$PORT"`
	// MetricsAddr serves /metrics and health probes. Empty disables it.
	MetricsAddr       string        `koanf:"metrics_addr" yaml:"metrics_addr" jsonschema:"description=Metrics and health listen address; empty disables"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" jsonschema:"type=string,description=Graceful shutdown timeout such as 5s"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout" jsonschema:"type=string"`
}

// DatabaseConfig controls the credential store. URL comes from DATABASE_URL.
type DatabaseConfig struct {
	URL            string `koanf:"-" yaml:"-"`
	AutoMigrate    bool   `koanf:"auto_migrate" yaml:"auto_migrate" jsonschema:"description=Apply pending migrations on serve"`
	ConnectRetries uint64 `koanf:"connect_retries" yaml:"connect_retries" jsonschema:"minimum=0"`
}

// SessionConfig controls session lifetime and cookie delivery. Secret comes
// from SESSION_SECRET.
type SessionConfig struct {
	Secret          string        `koanf:"-" yaml:"-"`
	Store           string        `koanf:"store" yaml:"store" jsonschema:"enum=memory,enum=database"`
	TTL             time.Duration `koanf:"ttl" yaml:"ttl" jsonschema:"type=string,description=Session lifetime such as 24h"`
	JanitorInterval time.Duration `koanf:"janitor_interval" yaml:"janitor_interval" jsonschema:"type=string"`
	CookieName      string        `koanf:"cookie_name" yaml:"cookie_name" jsonschema:"minLength=1"`
	CookieSecure    bool          `koanf:"cookie_secure" yaml:"cookie_secure"`
}

// WebConfig controls request filtering.
type WebConfig struct {
	// AllowedOrigins are glob patterns accepted in the Origin header of
	// state-changing requests, in addition to the request host.
	AllowedOrigins []string `koanf:"allowed_origins" yaml:"allowed_origins"`
	// RateLimit and RateBurst bound credential attempts per client per second.
	RateLimit int `koanf:"rate_limit" yaml:"rate_limit" jsonschema:"minimum=1"`
	RateBurst int `koanf:"rate_burst" yaml:"rate_burst" jsonschema:"minimum=1"`
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool `koanf:"trust_proxy" yaml:"trust_proxy"`
}

// LogConfig controls log output.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// CartConfig controls the cart command.
type CartConfig struct {
	// File is the cart storage file. Empty uses the XDG data directory.
	File string `koanf:"file" yaml:"file"`
}

// Env holds values read from the process environment.
type Env struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	Port          int    `env:"PORT" envDefault:"3000"`
	AutoMigrate   *bool  `env:"LABELHUB_DB_AUTO_MIGRATE"`
}

// defaults are loaded before any other source.
var defaults = map[string]any{
	"server.addr":                "",
	"server.metrics_addr":        "127.0.0.1:9100",
	"server.shutdown_timeout":    5 * time.Second,
	"server.read_header_timeout": 10 * time.Second,
	"database.auto_migrate":      true,
	"database.connect_retries":   uint64(store.DefaultConnectRetries),
	"session.store":              SessionStoreMemory,
	"session.ttl":                24 * time.Hour,
	"session.janitor_interval":   10 * time.Minute,
	"session.cookie_name":        "labelhub_session",
	"session.cookie_secure":      false,
	"web.allowed_origins":        []string{},
	"web.rate_limit":             5,
	"web.rate_burst":             10,
	"web.trust_proxy":            false,
	"log.format":                 "json",
	"log.level":                  "info",
	"cart.file":                  "",
}

// Default returns the built-in configuration without any external source.
func Default() *Config {
	cfg, err := load("", nil, nil)
	if err != nil {
		// Defaults are static; failing to decode them is a programming error.
		panic(err)
	}
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path, the
// process environment and the changed flags. A missing file is not an
// error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	return LoadWithEnv(path, flags, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadWithEnv(path string, flags *pflag.FlagSet, environ map[string]string) (*Config, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").
			With("operation", "parse environment").
			Wrap(err)
	}
	return load(path, flags, &e)
}

func load(path string, flags *pflag.FlagSet, e *Env) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_FILE_INVALID").
					With("path", path).
					Wrap(err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, oops.Code("CONFIG_FILE_UNREADABLE").
				With("path", path).
				Wrap(err)
		}
	}

	if e != nil && e.AutoMigrate != nil {
		if err := k.Set("database.auto_migrate", *e.AutoMigrate); err != nil {
			return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	port := DefaultPort
	if e != nil {
		cfg.Database.URL = e.DatabaseURL
		cfg.Session.Secret = e.SessionSecret
		if e.Port != 0 {
			port = e.Port
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":" + strconv.Itoa(port)
	}
	return &cfg, nil
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":           "server.addr",
	"metrics-addr":   "server.metrics_addr",
	"session-store":  "session.store",
	"session-ttl":    "session.ttl",
	"cookie-secure":  "session.cookie_secure",
	"auto-migrate":   "database.auto_migrate",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"cart-file":      "cart.file",
	"allowed-origin": "web.allowed_origins",
}

// Validate checks that the configuration is usable by serve.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "DATABASE_URL").
			Errorf("DATABASE_URL environment variable is required")
	}
	if _, _, err := store.ParseDatabaseURL(c.Database.URL); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("field", "DATABASE_URL").
			Errorf("DATABASE_URL is invalid: %v", err)
	}
	if c.Session.Secret == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "SESSION_SECRET").
			Errorf("SESSION_SECRET environment variable is required")
	}
	return c.ValidateOptions()
}

// ValidateOptions checks the non-secret settings.
func (c *Config) ValidateOptions() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return invalid("server.addr", "must be host:port, got %q", c.Server.Addr)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "must be positive")
	}
	if !slices.Contains([]string{SessionStoreMemory, SessionStoreDatabase}, c.Session.Store) {
		return invalid("session.store", "must be %q or %q, got %q", SessionStoreMemory, SessionStoreDatabase, c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "must be positive")
	}
	if c.Session.JanitorInterval <= 0 {
		return invalid("session.janitor_interval", "must be positive")
	}
	if c.Session.CookieName == "" {
		return invalid("session.cookie_name", "is required")
	}
	if c.Web.RateLimit < 1 || c.Web.RateBurst < 1 {
		return invalid("web.rate_limit", "rate_limit and rate_burst must be at least 1")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return invalid("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").
		With("field", field).
		Errorf(field+" "+format, args...)
}

// Presence reports which secret values are set without revealing them.
func (c *Config) Presence() map[string]bool {
	return map[string]bool{
		"DATABASE_URL":   c.Database.URL != "",
		"SESSION_SECRET": c.Session.Secret != "",
	}
}

// RegisterFlags defines the flags that override config keys on flags.
// Only flags the user sets take effect, so the defaults shown here are
// informational.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "listen address (default :$PORT)")
	flags.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	flags.String("session-store", SessionStoreMemory, "session store (memory or database)")
	flags.Duration("session-ttl", 24*time.Hour, "session lifetime")
	flags.Bool("cookie-secure", false, "mark the session cookie Secure")
	flags.Bool("auto-migrate", true, "apply pending database migrations on startup")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.StringSlice("allowed-origin", nil, "additional allowed Origin glob (repeatable)")
}
