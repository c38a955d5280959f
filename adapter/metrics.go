package adapter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FredYakumo/zihuan-next/metric"
)

// Metrics holds Prometheus metrics specific to the adapter. Shared frame
// counters (received, processed, duration, errors) live on the core
// platform metrics and are recorded through the registry's Metrics.
type Metrics struct {
	connectionState  prometheus.Gauge
	eventsDispatched *prometheus.CounterVec
	eventsSkipped    prometheus.Counter
}

// newMetrics creates and registers adapter metrics
func newMetrics(registry *metric.MetricsRegistry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zihuan",
			Subsystem: "adapter",
			Name:      "connection_state",
			Help:      "Gateway connection state (0=disconnected, 1=connecting, 2=connected, 3=terminated)",
		}),

		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "adapter",
			Name:      "events_dispatched_total",
			Help:      "Events routed to a handler, by message type",
		}, []string{"component", "message_type"}),

		eventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "adapter",
			Name:      "events_skipped_total",
			Help:      "Accepted events with no registered handler",
		}),
	}

	registry.RegisterGauge(componentName, "connection_state", metrics.connectionState)
	registry.RegisterCounterVec(componentName, "events_dispatched", metrics.eventsDispatched)
	registry.RegisterCounter(componentName, "events_skipped", metrics.eventsSkipped)

	return metrics
}
