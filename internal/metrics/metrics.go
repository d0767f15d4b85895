package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for adb-rescue watch mode. All
// methods are nil-safe so one-shot runs can skip metrics entirely.
type Metrics struct {
	registry                *prometheus.Registry
	probesTotal             *prometheus.CounterVec
	recoveriesTotal         *prometheus.CounterVec
	hardResetsTotal         prometheus.Counter
	recoveryDurationSeconds prometheus.Histogram
	lastHealthyGauge        prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adb_rescue_probes_total",
			Help: "Total health probes by observed device state.",
		}, []string{"state"}),
		recoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adb_rescue_recoveries_total",
			Help: "Total recovery runs by terminal outcome.",
		}, []string{"outcome"}),
		hardResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adb_rescue_hard_resets_total",
			Help: "Total bus-level disable/enable cycles attempted.",
		}),
		recoveryDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adb_rescue_recovery_duration_seconds",
			Help:    "Duration of recovery runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		lastHealthyGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adb_rescue_last_healthy_timestamp",
			Help: "Unix timestamp of the last healthy observation.",
		}),
	}

	registry.MustRegister(
		m.probesTotal,
		m.recoveriesTotal,
		m.hardResetsTotal,
		m.recoveryDurationSeconds,
		m.lastHealthyGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncProbe records one probe observation.
func (m *Metrics) IncProbe(state string) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(state).Inc()
}

// ObserveRecovery records one finished recovery run.
func (m *Metrics) ObserveRecovery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.recoveriesTotal.WithLabelValues(outcome).Inc()
	m.recoveryDurationSeconds.Observe(duration.Seconds())
}

// IncHardReset counts one attempted bus-level reset.
func (m *Metrics) IncHardReset() {
	if m == nil {
		return
	}
	m.hardResetsTotal.Inc()
}

// SetLastHealthy records when the device was last seen healthy.
func (m *Metrics) SetLastHealthy(t time.Time) {
	if m == nil {
		return
	}
	m.lastHealthyGauge.Set(float64(t.Unix()))
}
