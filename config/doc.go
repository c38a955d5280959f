// Package config provides configuration loading for the bridge.
//
// Configuration comes from three layers, later layers winning: built-in
// defaults, an optional YAML file, and ZIHUAN_* environment variables.
// The result is validated once at load time and treated as immutable for
// the life of the process.
//
// # Layout
//
//	gateway:
//	  url: ws://localhost:3001
//	  token: secret
//
//	store:
//	  host: localhost
//	  port: 4222
//	  db: 0
//
//	metrics:
//	  enabled: true
//	  port: 9090
//	  path: /metrics
//
//	log:
//	  level: info
//	  format: json
//
// Leaving store.host and store.port empty selects the in-process memory
// tier without any network probing.
//
// # Environment Overrides
//
// ZIHUAN_GATEWAY_URL, ZIHUAN_GATEWAY_TOKEN, ZIHUAN_STORE_HOST,
// ZIHUAN_STORE_PORT, ZIHUAN_STORE_DB, ZIHUAN_STORE_TOKEN,
// ZIHUAN_METRICS_PORT, ZIHUAN_LOG_LEVEL, and ZIHUAN_LOG_FORMAT override
// the corresponding file values.
//
// # Usage
//
//	cfg, err := config.Load(*configPath)
//	if err != nil {
//	    return err
//	}
//	logger.Info("configuration loaded", "config", cfg.Redacted())
//
// Redacted returns a copy with credentials masked for safe logging; raw
// tokens never reach the log stream.
package config
