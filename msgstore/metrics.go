package msgstore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FredYakumo/zihuan-next/metric"
)

// storeMetrics holds Prometheus metrics for message store operations.
type storeMetrics struct {
	writes         *prometheus.CounterVec
	writeFallbacks prometheus.Counter
	writesSkipped  prometheus.Counter
	reads          *prometheus.CounterVec
	readMisses     prometheus.Counter
	memoryEntries  prometheus.Gauge
}

// newStoreMetrics creates and registers store metrics with the provided registry.
func newStoreMetrics(registry *metric.MetricsRegistry) (*storeMetrics, error) {
	m := &storeMetrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "msgstore",
			Name:      "writes_total",
			Help:      "Message writes by the tier that took them",
		}, []string{"tier"}),
		writeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "msgstore",
			Name:      "write_fallbacks_total",
			Help:      "Writes diverted to the in-memory fallback after a remote failure",
		}),
		writesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "msgstore",
			Name:      "writes_skipped_total",
			Help:      "Writes skipped because the message had no id",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "msgstore",
			Name:      "reads_total",
			Help:      "Message reads served, by the tier that answered",
		}, []string{"tier"}),
		readMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zihuan",
			Subsystem: "msgstore",
			Name:      "read_misses_total",
			Help:      "Reads that found the message in no tier",
		}),
		memoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zihuan",
			Subsystem: "msgstore",
			Name:      "memory_entries",
			Help:      "Entries currently held in process memory (no eviction)",
		}),
	}

	if err := registry.RegisterCounterVec("msgstore", "writes", m.writes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("msgstore", "write_fallbacks", m.writeFallbacks); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("msgstore", "writes_skipped", m.writesSkipped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("msgstore", "reads", m.reads); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("msgstore", "read_misses", m.readMisses); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("msgstore", "memory_entries", m.memoryEntries); err != nil {
		return nil, err
	}

	return m, nil
}

// recordWrite counts a completed write against the tier that took it.
func (m *storeMetrics) recordWrite(tier Tier) {
	m.writes.WithLabelValues(tier.String()).Inc()
}

// recordWriteFallback counts a write diverted to the in-memory fallback.
func (m *storeMetrics) recordWriteFallback() {
	m.writeFallbacks.Inc()
}

// recordWriteSkipped counts a write dropped for lack of a message id.
func (m *storeMetrics) recordWriteSkipped() {
	m.writesSkipped.Inc()
}

// recordRead counts a read served by the given tier.
func (m *storeMetrics) recordRead(tier Tier) {
	m.reads.WithLabelValues(tier.String()).Inc()
}

// recordReadMiss counts a read that no tier could serve.
func (m *storeMetrics) recordReadMiss() {
	m.readMisses.Inc()
}

// updateMemoryEntries sets the in-process entry gauge.
func (m *storeMetrics) updateMemoryEntries(n int) {
	m.memoryEntries.Set(float64(n))
}
