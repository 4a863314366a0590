// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	DaysSimulated   prometheus.Counter
	TradesExecuted  *prometheus.CounterVec
	TradesRejected  *prometheus.CounterVec
	SweepJobsActive prometheus.Gauge

	// Result metrics
	LastFinalEquity prometheus.Gauge
	LastSharpeRatio prometheus.Gauge
	ReportsRendered prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the global default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "ashare_quant_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"strategy"}),
		DaysSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "days_simulated_total",
			Help:      "Total number of trading days simulated",
		}),
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_executed_total",
			Help:      "Total number of executed fills by side",
		}, []string{"side"}),
		TradesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_rejected_total",
			Help:      "Total number of rejected trade attempts by reason",
		}, []string{"reason"}),
		SweepJobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "jobs_active",
			Help:      "Number of sweep jobs currently running",
		}),

		LastFinalEquity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "result",
			Name:      "last_final_equity",
			Help:      "Final equity of the most recent completed run",
		}),
		LastSharpeRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "result",
			Name:      "last_sharpe_ratio",
			Help:      "Sharpe ratio of the most recent analysed run",
		}),
		ReportsRendered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "result",
			Name:      "reports_rendered_total",
			Help:      "Total number of run reports rendered",
		}),

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

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished backtest run.
func RecordRun(strategy, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordDaySimulated increments the simulated days counter.
func RecordDaySimulated() {
	DefaultMetrics.DaysSimulated.Inc()
}

// RecordTrade increments the executed trades counter.
func RecordTrade(side string) {
	DefaultMetrics.TradesExecuted.WithLabelValues(side).Inc()
}

// RecordRejection increments the rejected trades counter.
func RecordRejection(reason string) {
	DefaultMetrics.TradesRejected.WithLabelValues(reason).Inc()
}

// SweepJobStarted increments the active sweep jobs gauge.
func SweepJobStarted() {
	DefaultMetrics.SweepJobsActive.Inc()
}

// SweepJobFinished decrements the active sweep jobs gauge.
func SweepJobFinished() {
	DefaultMetrics.SweepJobsActive.Dec()
}

// RecordResult records headline numbers of a completed run.
func RecordResult(finalEquity, sharpe float64, unixSeconds int64) {
	DefaultMetrics.LastFinalEquity.Set(finalEquity)
	DefaultMetrics.LastSharpeRatio.Set(sharpe)
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}

// RecordReport increments the rendered reports counter.
func RecordReport() {
	DefaultMetrics.ReportsRendered.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
