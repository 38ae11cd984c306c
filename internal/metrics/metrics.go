// Package metrics provides Prometheus instrumentation for the glimpse
// preload scheduler and preview service.
//
// All methods on *Metrics are nil-safe; pass nil when no instrumentation is
// wanted (the CLI commands and most unit tests do this).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metric descriptors for glimpse.
type Metrics struct {
	preloadTotal    *prometheus.CounterVec
	preloadDuration prometheus.Histogram
	inFlight        prometheus.Gauge
	cacheBytes      prometheus.Gauge
	cacheEntries    prometheus.Gauge
	previewTotal    *prometheus.CounterVec
	previewDuration *prometheus.HistogramVec
	sessionsCurrent prometheus.Gauge
}

// New creates a Metrics instance and registers all descriptors with reg.
// Use prometheus.DefaultRegisterer in production and prometheus.NewRegistry()
// in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		preloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glimpse_preload_fetches_total",
				Help: "Total number of background preload fetches by outcome.",
			},
			[]string{"status"},
		),
		preloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glimpse_preload_fetch_duration_seconds",
			Help:    "Duration of background preload fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glimpse_preload_in_flight",
			Help: "Current number of preload fetches in flight.",
		}),
		cacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glimpse_preload_cache_bytes",
			Help: "Accounted size of the preload cache in bytes.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glimpse_preload_cache_entries",
			Help: "Current number of entries in the preload cache.",
		}),
		previewTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glimpse_preview_requests_total",
				Help: "Total number of preview requests by status and warm state.",
			},
			[]string{"status", "warm"},
		),
		previewDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glimpse_preview_duration_seconds",
				Help:    "Duration of preview requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		sessionsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glimpse_sessions_current",
			Help: "Current number of open preview sessions.",
		}),
	}
	reg.MustRegister(
		m.preloadTotal,
		m.preloadDuration,
		m.inFlight,
		m.cacheBytes,
		m.cacheEntries,
		m.previewTotal,
		m.previewDuration,
		m.sessionsCurrent,
	)
	return m
}

// RecordPreload records the outcome and duration of one preload fetch.
// status is one of the model.OutcomeStatus values.
func (m *Metrics) RecordPreload(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.preloadTotal.WithLabelValues(status).Inc()
	if dur > 0 {
		m.preloadDuration.Observe(dur.Seconds())
	}
}

// SetInFlight updates the in-flight preload gauge.
func (m *Metrics) SetInFlight(n int) {
	if m == nil {
		return
	}
	m.inFlight.Set(float64(n))
}

// SetCacheUsage updates the preload cache size gauges.
func (m *Metrics) SetCacheUsage(entries int, bytes int64) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(entries))
	m.cacheBytes.Set(float64(bytes))
}

// RecordPreview records a preview request. status should be "ok" or "error".
func (m *Metrics) RecordPreview(status string, warm bool, dur time.Duration) {
	if m == nil {
		return
	}
	w := "false"
	if warm {
		w = "true"
	}
	m.previewTotal.WithLabelValues(status, w).Inc()
	m.previewDuration.WithLabelValues(status).Observe(dur.Seconds())
}

// SetSessionCount updates the open sessions gauge.
func (m *Metrics) SetSessionCount(n int) {
	if m == nil {
		return
	}
	m.sessionsCurrent.Set(float64(n))
}
