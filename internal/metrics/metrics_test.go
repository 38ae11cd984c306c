package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ppiankov/glimpse/internal/metrics"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	m := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		m[f.GetName()] = f
	}
	return m
}

func TestNew_RegistersMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if m == nil {
		t.Fatal("New returned nil")
	}
	m.SetInFlight(0)
	m.SetCacheUsage(0, 0)
	m.SetSessionCount(0)

	families := gather(t, reg)
	for _, want := range []string{
		"glimpse_preload_in_flight",
		"glimpse_preload_cache_bytes",
		"glimpse_preload_cache_entries",
		"glimpse_sessions_current",
	} {
		if _, ok := families[want]; !ok {
			t.Errorf("metric %q not found in registry after New", want)
		}
	}
}

func TestNilSafe(t *testing.T) {
	t.Parallel()
	var m *metrics.Metrics
	m.RecordPreload("preloaded", time.Millisecond)
	m.SetInFlight(2)
	m.SetCacheUsage(3, 3072)
	m.RecordPreview("ok", true, time.Millisecond)
	m.SetSessionCount(1)
}

func TestRecordPreload(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordPreload("preloaded", 10*time.Millisecond)
	m.RecordPreload("preloaded", 20*time.Millisecond)
	m.RecordPreload("failed", 5*time.Millisecond)
	m.RecordPreload("cached", 0)

	families := gather(t, reg)
	counts := make(map[string]float64)
	for _, metric := range families["glimpse_preload_fetches_total"].GetMetric() {
		counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	if counts["preloaded"] != 2 || counts["failed"] != 1 || counts["cached"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}

	hist := families["glimpse_preload_fetch_duration_seconds"].GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 3 {
		t.Errorf("expected 3 duration samples, got %d", hist.GetSampleCount())
	}
}

func TestSetCacheUsage(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.SetCacheUsage(4, 4096)

	families := gather(t, reg)
	if got := families["glimpse_preload_cache_entries"].GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Errorf("glimpse_preload_cache_entries: got %v, want 4", got)
	}
	if got := families["glimpse_preload_cache_bytes"].GetMetric()[0].GetGauge().GetValue(); got != 4096 {
		t.Errorf("glimpse_preload_cache_bytes: got %v, want 4096", got)
	}
}

func TestRecordPreview_WarmLabel(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordPreview("ok", true, time.Millisecond)
	m.RecordPreview("ok", false, time.Millisecond)
	m.RecordPreview("error", false, time.Millisecond)

	families := gather(t, reg)
	if n := len(families["glimpse_preview_requests_total"].GetMetric()); n != 3 {
		t.Errorf("expected 3 label combinations, got %d", n)
	}
}
