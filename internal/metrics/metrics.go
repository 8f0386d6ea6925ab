// Package metrics exposes Prometheus collectors for validation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by the run orchestrator.
type Metrics struct {
	RunsStarted      prometheus.Counter
	RunsCompleted    *prometheus.CounterVec
	ActiveRuns       prometheus.Gauge
	RecordsProcessed prometheus.Counter
	Mismatches       *prometheus.CounterVec
	PagesFetched     prometheus.Counter
	FallbackLookups  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recon_runs_started_total",
			Help: "Validation runs started.",
		}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_runs_completed_total",
			Help: "Validation runs finished, by outcome.",
		}, []string{"outcome"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recon_active_runs",
			Help: "Validation runs currently in flight.",
		}),
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recon_records_processed_total",
			Help: "Directory records compared.",
		}),
		Mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_mismatches_total",
			Help: "Mismatches found, by kind.",
		}, []string{"kind"}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recon_directory_pages_fetched_total",
			Help: "Directory pages fetched.",
		}),
		FallbackLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recon_fallback_lookups_total",
			Help: "Individual profile lookups issued after a batch miss.",
		}),
	}

	reg.MustRegister(
		m.RunsStarted,
		m.RunsCompleted,
		m.ActiveRuns,
		m.RecordsProcessed,
		m.Mismatches,
		m.PagesFetched,
		m.FallbackLookups,
	)
	return m
}

// NewUnregistered creates collectors without registering them, for tests and
// for callers that opt out of a metrics endpoint.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
