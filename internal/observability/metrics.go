// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "strategy_tuner"

// Metrics holds all Prometheus metrics of one search process.
// All Record methods are no-ops on a nil *Metrics.
type Metrics struct {
	// Search metrics
	TrialsTotal       *prometheus.CounterVec
	TrialDuration     *prometheus.HistogramVec
	BestObjective     prometheus.Gauge
	TrialsInFlight    prometheus.Gauge
	SearchRunsTotal   *prometheus.CounterVec
	SearchRunDuration prometheus.Histogram
	ReplayDivergences prometheus.Counter

	// Evaluation metrics
	EvaluationsTotal *prometheus.CounterVec

	// Storage metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on reg.
// Each search gets its own registry so several can run in one process.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		TrialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trials_total",
			Help:      "Total number of finalized trials by state and prune reason",
		}, []string{"state", "reason"}),
		TrialDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trial_evaluation_seconds",
			Help:      "Trial evaluation wall-clock time in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		BestObjective: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_objective",
			Help:      "Best annualized Sharpe ratio among COMPLETE trials so far",
		}),
		TrialsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "trials_in_flight",
			Help:      "Number of trials currently RUNNING",
		}),
		SearchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "runs_total",
			Help:      "Total number of search runs by status",
		}, []string{"status"}),
		SearchRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "run_duration_seconds",
			Help:      "Search run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		ReplayDivergences: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "replay_divergences_total",
			Help:      "Total number of best-trial replays that diverged from the recorded objective",
		}),
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "runs_total",
			Help:      "Total number of fixed-parameter evaluations by status",
		}, []string{"status"}),
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordTrialStarted increments the in-flight gauge.
func (m *Metrics) RecordTrialStarted() {
	if m == nil {
		return
	}
	m.TrialsInFlight.Inc()
}

// RecordTrial records one finalized trial.
func (m *Metrics) RecordTrial(state, reason string, seconds float64) {
	if m == nil {
		return
	}
	m.TrialsInFlight.Dec()
	m.TrialsTotal.WithLabelValues(state, reason).Inc()
	m.TrialDuration.WithLabelValues(state).Observe(seconds)
}

// SetBestObjective updates the best objective gauge.
func (m *Metrics) SetBestObjective(v float64) {
	if m == nil {
		return
	}
	m.BestObjective.Set(v)
}

// RecordSearchRun records a finished search run.
func (m *Metrics) RecordSearchRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.SearchRunsTotal.WithLabelValues(status).Inc()
	m.SearchRunDuration.Observe(seconds)
}

// RecordReplayDivergence counts a non-deterministic best-trial replay.
func (m *Metrics) RecordReplayDivergence() {
	if m == nil {
		return
	}
	m.ReplayDivergences.Inc()
}

// RecordEvaluation records a fixed-parameter evaluation.
func (m *Metrics) RecordEvaluation(status string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(status).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
