package config

import (
	"fmt"
	"strings"
	"time"
)

// StoreMode selects where session token bundles are persisted.
type StoreMode string

const (
	// StoreModeRedis keeps bundles in Redis with TTL expiry (default).
	StoreModeRedis StoreMode = "redis"
	// StoreModePostgres keeps bundles in Postgres; useful when the
	// deployment already runs Postgres and no Redis is available.
	StoreModePostgres StoreMode = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreMode.
func (m *StoreMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "redis", "postgres":
		*m = StoreMode(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreMode: %q (valid options: redis, postgres)", v)
	}
}

// SessionConfig groups session persistence and cookie configuration.
type SessionConfig struct {
	// StoreMode determines which token store adapter to use.
	StoreMode StoreMode `env:"SESSION_STORE_MODE" envDefault:"redis"`

	// TTL is how long an untouched session survives in the store. Every
	// Save resets it.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// CookieTTL is the Max-Age of the session cookie. Zero means a
	// browser-session cookie.
	CookieTTL time.Duration `env:"SESSION_COOKIE_TTL" envDefault:"0"`

	// KeyPrefix namespaces session keys in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"session:"`

	// CacheTTL bounds the in-process resolved-session cache. Logout
	// broadcasts evict earlier.
	CacheTTL time.Duration `env:"SESSION_CACHE_TTL" envDefault:"30s"`

	// RefreshTimeout bounds a token refresh exchange against the backend.
	RefreshTimeout time.Duration `env:"SESSION_REFRESH_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.CookieTTL < 0 {
		c.CookieTTL = 0
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "session:"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 10 * time.Second
	}
}
