package config

import (
	"strings"
	"time"
)

// BackendConfig describes the monitoring REST backend the gateway fronts.
type BackendConfig struct {
	// BaseURL is the backend root, e.g. "http://monitoring-api:8000".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	// AuthTimeout bounds login, refresh, and profile calls.
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT" envDefault:"15s"`

	// ProxyTimeout bounds proxied dashboard API calls end to end,
	// including one token refresh and retry.
	ProxyTimeout time.Duration `env:"PROXY_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to backend configuration values.
func (c *BackendConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 15 * time.Second
	}
	if c.ProxyTimeout <= 0 {
		c.ProxyTimeout = 30 * time.Second
	}
}
