package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProxyMetrics tracks requests passing through the handoff proxy.
type ProxyMetrics struct {
	forwarded *prometheus.CounterVec
	unready   prometheus.Counter
}

// NewProxyMetrics creates a Prometheus-backed ProxyMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); the nil
// receiver is safe to use.
func NewProxyMetrics() *ProxyMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &ProxyMetrics{
		forwarded: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchyard_proxy_forwarded_total",
				Help: "Total number of requests forwarded to the legacy adapter",
			},
			[]string{"method"},
		),
		unready: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "switchyard_proxy_unready_total",
				Help: "Total number of requests rejected with 503 because no adapter was available",
			},
		),
	}
}

// RecordForwarded records a request handed off to the legacy adapter.
func (m *ProxyMetrics) RecordForwarded(method string) {
	if m == nil {
		return
	}
	m.forwarded.WithLabelValues(method).Inc()
}

// RecordUnready records a request rejected because no adapter was set.
func (m *ProxyMetrics) RecordUnready() {
	if m == nil {
		return
	}
	m.unready.Inc()
}

// ConfigMetrics tracks configuration snapshot distribution.
type ConfigMetrics struct {
	snapshots    prometheus.Counter
	sourceErrors prometheus.Counter
	subscribers  prometheus.Gauge
}

// NewConfigMetrics creates a Prometheus-backed ConfigMetrics instance.
//
// Returns nil if metrics are not enabled; the nil receiver is safe to use.
func NewConfigMetrics() *ConfigMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &ConfigMetrics{
		snapshots: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "switchyard_config_snapshots_total",
				Help: "Total number of configuration snapshots published",
			},
		),
		sourceErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "switchyard_config_source_errors_total",
				Help: "Total number of errors reported by the configuration source",
			},
		),
		subscribers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "switchyard_config_subscribers",
				Help: "Current number of active snapshot subscribers",
			},
		),
	}
}

// RecordSnapshot records a published configuration snapshot.
func (m *ConfigMetrics) RecordSnapshot() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

// RecordSourceError records an error from the configuration source.
func (m *ConfigMetrics) RecordSourceError() {
	if m == nil {
		return
	}
	m.sourceErrors.Inc()
}

// RecordSubscribe records a new subscriber.
func (m *ConfigMetrics) RecordSubscribe() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

// RecordUnsubscribe records a released subscription.
func (m *ConfigMetrics) RecordUnsubscribe() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}
