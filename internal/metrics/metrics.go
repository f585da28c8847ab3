// Package metrics provides Prometheus metrics for the tabpile daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	SweepsTotal      *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
	ArchivedTotal    prometheus.Counter
	ArchiveFailures  *prometheus.CounterVec
	EventsTotal      *prometheus.CounterVec
	TogglesTotal     *prometheus.CounterVec
	TrackedResources prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabpile_sweeps_total",
				Help: "Total number of sweeps by result.",
			},
			[]string{"result"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tabpile_sweep_duration_seconds",
				Help:    "Sweep duration.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ArchivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tabpile_archived_tabs_total",
				Help: "Total number of tabs archived and closed.",
			},
		),
		ArchiveFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabpile_archive_failures_total",
				Help: "Archive failures by stage.",
			},
			[]string{"stage"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabpile_events_total",
				Help: "Events dispatched by source and type.",
			},
			[]string{"source", "type"},
		),
		TogglesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabpile_override_toggles_total",
				Help: "Override toggles by resulting state.",
			},
			[]string{"state"},
		),
		TrackedResources: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tabpile_sweep_candidates",
				Help: "Tabs considered by the last sweep.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.SweepsTotal)
	reg.MustRegister(m.SweepDuration)
	reg.MustRegister(m.ArchivedTotal)
	reg.MustRegister(m.ArchiveFailures)
	reg.MustRegister(m.EventsTotal)
	reg.MustRegister(m.TogglesTotal)
	reg.MustRegister(m.TrackedResources)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSweep counts a sweep and observes its duration.
func (m *Metrics) RecordSweep(result string, seconds float64, candidates int) {
	m.SweepsTotal.WithLabelValues(result).Inc()
	m.SweepDuration.Observe(seconds)
	m.TrackedResources.Set(float64(candidates))
}

// RecordArchived increments the archived counter.
func (m *Metrics) RecordArchived() {
	m.ArchivedTotal.Inc()
}

// RecordArchiveFailure counts a failure at the given archive stage.
func (m *Metrics) RecordArchiveFailure(stage string) {
	m.ArchiveFailures.WithLabelValues(stage).Inc()
}

// RecordEvent counts a dispatched event.
func (m *Metrics) RecordEvent(source, evType string) {
	m.EventsTotal.WithLabelValues(source, evType).Inc()
}

// RecordToggle counts an override toggle.
func (m *Metrics) RecordToggle(disabled bool) {
	state := "enabled"
	if disabled {
		state = "disabled"
	}
	m.TogglesTotal.WithLabelValues(state).Inc()
}
