package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bridge configuration
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// GatewayConfig defines the chat-bot gateway connection
type GatewayConfig struct {
	URL   string `yaml:"url"`   // websocket endpoint, ws:// or wss://
	Token string `yaml:"token"` // bearer token for the handshake
}

// StoreConfig defines the remote message store connection.
// Leaving host and port empty selects the in-process memory tier.
type StoreConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	DB    int    `yaml:"db"`    // logical database, becomes part of the bucket name
	Token string `yaml:"token"` // server credential, optional
}

// MetricsConfig defines the Prometheus scrape endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig defines structured logging behavior
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the configuration used when no file is provided
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file, applies ZIHUAN_* environment
// overrides, and validates the result. An empty path loads defaults plus
// environment overrides only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides layers ZIHUAN_* environment variables over file values.
// Environment always wins so deployments can override a shared file.
func (c *Config) applyEnvOverrides() error {
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"ZIHUAN_GATEWAY_URL", func(v string) error { c.Gateway.URL = v; return nil }},
		{"ZIHUAN_GATEWAY_TOKEN", func(v string) error { c.Gateway.Token = v; return nil }},
		{"ZIHUAN_STORE_HOST", func(v string) error { c.Store.Host = v; return nil }},
		{"ZIHUAN_STORE_PORT", func(v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", v, err)
			}
			c.Store.Port = port
			return nil
		}},
		{"ZIHUAN_STORE_DB", func(v string) error {
			db, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid db %q: %w", v, err)
			}
			c.Store.DB = db
			return nil
		}},
		{"ZIHUAN_STORE_TOKEN", func(v string) error { c.Store.Token = v; return nil }},
		{"ZIHUAN_METRICS_PORT", func(v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", v, err)
			}
			c.Metrics.Port = port
			return nil
		}},
		{"ZIHUAN_LOG_LEVEL", func(v string) error { c.Log.Level = v; return nil }},
		{"ZIHUAN_LOG_FORMAT", func(v string) error { c.Log.Format = v; return nil }},
	}

	for _, o := range overrides {
		val, ok := os.LookupEnv(o.key)
		if !ok || val == "" {
			continue
		}
		if err := validateEnvVar(o.key, val); err != nil {
			return err
		}
		if err := o.apply(val); err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
	}

	return nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}

	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("gateway.url must use ws or wss scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("gateway.url is missing a host")
	}

	// Store host and port travel together
	if (c.Store.Host == "") != (c.Store.Port == 0) {
		return fmt.Errorf("store.host and store.port must both be set or both be empty")
	}
	if c.Store.Port < 0 || c.Store.Port > 65535 {
		return fmt.Errorf("store.port out of range: %d", c.Store.Port)
	}
	if c.Store.DB < 0 {
		return fmt.Errorf("store.db must not be negative: %d", c.Store.DB)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
		}
		if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /: %q", c.Metrics.Path)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error: %q", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text: %q", c.Log.Format)
	}

	return nil
}

// StoreConfigured reports whether remote store parameters are present.
// Absence selects the memory tier without probing anything.
func (s *StoreConfig) StoreConfigured() bool {
	return s.Host != "" && s.Port != 0
}

// URL returns the NATS server URL for the remote store
func (s *StoreConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", s.Host, s.Port)
}

// BucketName returns the KV bucket for the configured logical database
func (s *StoreConfig) BucketName() string {
	return fmt.Sprintf("messages-%d", s.DB)
}

// Redacted returns a copy safe for logging, with credentials masked
func (c *Config) Redacted() *Config {
	copied := *c
	copied.Gateway.Token = maskToken(c.Gateway.Token)
	copied.Store.Token = maskToken(c.Store.Token)
	return &copied
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	return "***"
}
