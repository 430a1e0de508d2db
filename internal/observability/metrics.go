// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderflow-edge-lab/internal/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "orderflow_edge_lab"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Loader metrics
	RowsLoaded  prometheus.Counter
	RowsDropped prometheus.Counter

	// Classifier metrics
	RowsClassified *prometheus.CounterVec

	// Evaluation metrics
	ConditionsEvaluated prometheus.Counter
	ConditionsFailed    prometheus.Counter
	RecordsProduced     prometheus.Counter
	RecordsAbsent       prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Loader metrics
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "rows_loaded_total",
			Help:      "Total number of feature rows loaded",
		}),
		RowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "rows_dropped_total",
			Help:      "Total number of rows dropped for an invalid price",
		}),

		// Classifier metrics
		RowsClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "rows_classified_total",
			Help:      "Total number of rows classified by orderflow state",
		}, []string{"state"}),

		// Evaluation metrics
		ConditionsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edge",
			Name:      "conditions_evaluated_total",
			Help:      "Total number of conditions evaluated successfully",
		}),
		ConditionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edge",
			Name:      "conditions_failed_total",
			Help:      "Total number of conditions omitted because evaluation failed",
		}),
		RecordsProduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edge",
			Name:      "records_produced_total",
			Help:      "Total number of condition stat records produced",
		}),
		RecordsAbsent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edge",
			Name:      "records_absent_total",
			Help:      "Total number of (condition, horizon) pairs below the minimum sample size",
		}),

		// Pipeline metrics
		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"command", "status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"stage"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler serving the metrics of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordLoad records loaded and dropped rows.
func (m *Metrics) RecordLoad(loaded, dropped int) {
	m.RowsLoaded.Add(float64(loaded))
	m.RowsDropped.Add(float64(dropped))
}

// RecordClassification counts labels per state.
func (m *Metrics) RecordClassification(dist map[domain.OrderflowState]int) {
	for state, n := range dist {
		m.RowsClassified.WithLabelValues(string(state)).Add(float64(n))
	}
}

// RecordEvaluation records evaluated conditions and produced/absent records.
func (m *Metrics) RecordEvaluation(evaluated, failed, produced, absent int) {
	m.ConditionsEvaluated.Add(float64(evaluated))
	m.ConditionsFailed.Add(float64(failed))
	m.RecordsProduced.Add(float64(produced))
	m.RecordsAbsent.Add(float64(absent))
}

// RecordStage records the duration of a pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordRun records a pipeline run outcome.
func (m *Metrics) RecordRun(command, status string, unixSeconds float64) {
	m.PipelineRunsTotal.WithLabelValues(command, status).Inc()
	if status == "success" {
		m.LastSuccessfulRun.Set(unixSeconds)
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
