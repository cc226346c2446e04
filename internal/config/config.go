package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Storage backends the portal can keep a session in
const (
	StorageFile    = "file"
	StorageKeyring = "keyring"
	StorageSQLite  = "sqlite"
	StorageMemory  = "memory"
)

const (
	DefaultBackendURL  = "http://127.0.0.1:5001/api"
	DefaultListenAddr  = "127.0.0.1:8572"
	DefaultLogLevel    = "info"
	DefaultCacheTTL    = 30 * time.Second
	DefaultHTTPTimeout = 15 * time.Second
)

// Config holds all configuration for the portal
type Config struct {
	Backend BackendConfig
	Server  ServerConfig
	Session SessionConfig
	Logging LoggingConfig
}

// BackendConfig describes the trading backend API
type BackendConfig struct {
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ServerConfig holds the portal web server settings
type ServerConfig struct {
	ListenAddr string
}

// SessionConfig selects where the session lives
type SessionConfig struct {
	Storage          string
	StoragePath      string
	CheckTokenExpiry bool
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level string
}

// Validate checks the loaded values
func (c Config) Validate() error {
	err := errors.ValidateWithOzzo(func() error {
		return validation.Errors{
			"backend_url": validation.Validate(c.Backend.URL,
				validation.Required,
				is.RequestURL,
			),
			"backend_timeout": validation.Validate(c.Backend.Timeout,
				validation.Min(time.Second),
			),
			"cache_ttl": validation.Validate(c.Backend.CacheTTL,
				validation.Min(time.Duration(0)),
			),
			"listen_addr": validation.Validate(c.Server.ListenAddr,
				validation.Required,
			),
			"storage": validation.Validate(c.Session.Storage,
				validation.Required,
				validation.In(StorageFile, StorageKeyring, StorageSQLite, StorageMemory),
			),
			"log_level": validation.Validate(c.Logging.Level,
				validation.Required,
				validation.In("trace", "debug", "info", "warn", "error", "fatal"),
			),
		}.Filter()
	}, "Invalid portal configuration")
	if err != nil {
		return err
	}
	return nil
}

// Load reads .env files, then the process environment, and validates the result
func Load() (*Config, error) {
	// missing files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv for lookups
func FromEnv(getenv func(string) string) (*Config, error) {
	timeout, err := duration(getenv, "PORTAL_HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := duration(getenv, "PORTAL_CACHE_TTL", DefaultCacheTTL)
	if err != nil {
		return nil, err
	}

	checkExpiry, err := boolean(getenv, "PORTAL_CHECK_TOKEN_EXPIRY", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Backend: BackendConfig{
			URL:      strings.TrimRight(stringOr(getenv, "PORTAL_BACKEND_URL", DefaultBackendURL), "/"),
			Timeout:  timeout,
			CacheTTL: cacheTTL,
		},
		Server: ServerConfig{
			ListenAddr: stringOr(getenv, "PORTAL_LISTEN_ADDR", DefaultListenAddr),
		},
		Session: SessionConfig{
			Storage:          strings.ToLower(stringOr(getenv, "PORTAL_STORAGE", StorageFile)),
			StoragePath:      getenv("PORTAL_STORAGE_PATH"),
			CheckTokenExpiry: checkExpiry,
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(stringOr(getenv, "PORTAL_LOG_LEVEL", DefaultLogLevel)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func stringOr(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryBadInput, "invalid duration").
			WithMetadata(map[string]any{"key": key, "value": raw})
	}
	return d, nil
}

func boolean(getenv func(string) string, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryBadInput, "invalid boolean").
			WithMetadata(map[string]any{"key": key, "value": raw})
	}
	return b, nil
}
