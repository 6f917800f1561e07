// Package metrics provides Prometheus collectors for simulation runs and
// the report API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drawdown"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	RunsTotal       *prometheus.CounterVec
	TrialsCompleted prometheus.Counter
	StartsSkipped   *prometheus.CounterVec
	TrialDuration   prometheus.Histogram
	TerminalValue   prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector with reg. A nil reg uses a private
// registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	m := &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sim",
			Name:      "runs_total",
			Help:      "Total number of runs by kind and status",
		}, []string{"kind", "status"}),
		TrialsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "trials_completed_total",
			Help:      "Total number of Monte Carlo trials simulated",
		}),
		StartsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "starts_skipped_total",
			Help:      "Start months that produced no trial, by reason",
		}, []string{"reason"}),
		TrialDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "trial_duration_seconds",
			Help:      "Wall time of a single trial",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		TerminalValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "montecarlo",
			Name:      "terminal_value",
			Help:      "Total portfolio value at the end of each trial",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 14),
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// TrialDone implements montecarlo.Observer.
func (m *Metrics) TrialDone(elapsed time.Duration, terminal float64) {
	m.TrialsCompleted.Inc()
	m.TrialDuration.Observe(elapsed.Seconds())
	m.TerminalValue.Observe(terminal)
}

// StartSkipped implements montecarlo.Observer.
func (m *Metrics) StartSkipped(reason string) {
	m.StartsSkipped.WithLabelValues(reason).Inc()
}

// RunFinished counts a finished run.
func (m *Metrics) RunFinished(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
