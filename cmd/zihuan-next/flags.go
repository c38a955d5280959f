package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	GatewayURL      string
	Token           string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("ZIHUAN_CONFIG", ""),
		"Path to configuration file, empty runs on defaults (env: ZIHUAN_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("ZIHUAN_CONFIG", ""),
		"Path to configuration file, empty runs on defaults (env: ZIHUAN_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("ZIHUAN_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: ZIHUAN_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("ZIHUAN_LOG_FORMAT", "json"),
		"Log format: json, text (env: ZIHUAN_LOG_FORMAT)")

	flag.StringVar(&cfg.GatewayURL, "gateway-url",
		getEnv("ZIHUAN_GATEWAY_URL", ""),
		"Gateway websocket URL, overrides the config file (env: ZIHUAN_GATEWAY_URL)")

	flag.StringVar(&cfg.Token, "token",
		getEnv("ZIHUAN_GATEWAY_TOKEN", ""),
		"Gateway bearer token, overrides the config file (env: ZIHUAN_GATEWAY_TOKEN)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("ZIHUAN_DEBUG", false),
		"Enable debug mode (env: ZIHUAN_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("ZIHUAN_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: ZIHUAN_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// An empty config path runs on defaults plus environment overrides
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %v", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Chat Gateway Bridge

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a config file
  %s --config=/etc/zihuan/config.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run from environment only
  export ZIHUAN_GATEWAY_URL=ws://gateway:3001
  export ZIHUAN_GATEWAY_TOKEN=changeme
  %s

  # Validate configuration only
  %s --config=/etc/zihuan/config.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
