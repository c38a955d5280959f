package adapter

import (
	"fmt"
	"net/url"
	"time"
)

const defaultHandshakeTimeout = 45 * time.Second

// Config holds the gateway connection settings.
type Config struct {
	// URL is the gateway websocket endpoint (ws:// or wss://).
	URL string
	// Token is sent as an Authorization bearer header during the
	// handshake. Empty means no authentication. Never logged.
	Token string
	// HandshakeTimeout bounds the dial; zero selects the default.
	HandshakeTimeout time.Duration
}

// applyDefaults fills zero values in place
func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
}

// Validate checks the connection settings
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("gateway url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid gateway url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("gateway url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("gateway url has no host")
	}
	return nil
}
