package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes pipeline run counters and gauges to Prometheus.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	runDuration  prometheus.Histogram
	objective    prometheus.Gauge
	shedEnergy   prometheus.Gauge
	lastRunEpoch prometheus.Gauge
}

// NewMetrics registers the pipeline metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypsa_entsoe_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypsa_entsoe_fetch_errors_total",
				Help: "Upstream data fetch errors by source",
			},
			[]string{"source"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pypsa_entsoe_run_duration_seconds",
				Help:    "End-to-end pipeline run duration",
				Buckets: prometheus.ExponentialBuckets(1, 3, 10),
			},
		),
		objective: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pypsa_entsoe_objective_eur",
				Help: "Objective value of the last solved dispatch",
			},
		),
		shedEnergy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pypsa_entsoe_shed_energy_mwh",
				Help: "Unserved energy of the last solved dispatch",
			},
		),
		lastRunEpoch: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pypsa_entsoe_last_run_timestamp_seconds",
				Help: "Completion time of the last successful run",
			},
		),
	}
}

// RecordRun records the outcome and duration of one pipeline run.
func (m *Metrics) RecordRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RecordFetchError counts one failed upstream fetch.
func (m *Metrics) RecordFetchError(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

// RecordSolution publishes the headline numbers of a successful solve.
func (m *Metrics) RecordSolution(objective, shed float64) {
	if m == nil {
		return
	}
	m.objective.Set(objective)
	m.shedEnergy.Set(shed)
	m.lastRunEpoch.SetToCurrentTime()
}
