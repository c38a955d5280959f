package component

import (
	"log/slog"

	"github.com/FredYakumo/zihuan-next/metric"
	"github.com/FredYakumo/zihuan-next/natsclient"
)

// Dependencies provides all external dependencies needed by components.
// Components receive this structure at construction rather than reaching
// for globals, which keeps wiring visible in one place and tests simple.
type Dependencies struct {
	NATSClient *natsclient.Client      // NATS client backing the remote store (nil when running memory-only)
	Metrics    *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger     *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
