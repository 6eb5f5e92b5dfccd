package metrics

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ErrorTypeDeadline = "deadline_exceeded"
	ErrorTypeDB       = "db"
	ErrorTypeForecast = "forecast"
	ErrorTypePanic    = "panic"
	ErrorTypeUnknown  = "unknown"
)

// ErrPanic marks a store failure recovered from a panic.
var ErrPanic = errors.New("panic recovered")

// EngineMetrics exposes scheduler and engine health signals.
type EngineMetrics struct {
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsSkipped   *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	forecasts     *prometheus.CounterVec
	suggestions   *prometheus.CounterVec
	ordersCreated *prometheus.CounterVec
	orderValue    *prometheus.CounterVec
	triggers      *prometheus.CounterVec
	successRate   *prometheus.GaugeVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton metrics registered on the default registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = New(prometheus.DefaultRegisterer)
	})
	return engineMetrics
}

// ResetForTest resets the singleton. Tests that call Engine() more than once
// per process should register against their own registry through New instead.
func ResetForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func New(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &EngineMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_job_runs_total",
			Help: "Scheduler job runs by job type and final status.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replenishment_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"job"}),
		jobsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_job_skipped_total",
			Help: "Cadence fires skipped because the previous run of the same job was still running.",
		}, []string{"job"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_store_errors_total",
			Help: "Per-store failures by severity and error type.",
		}, []string{"severity", "error_type"}),
		forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_forecasts_total",
			Help: "Forecasts produced by method.",
		}, []string{"method"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_suggestions_total",
			Help: "Replenishment suggestions generated by priority.",
		}, []string{"priority"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_orders_created_total",
			Help: "System orders handed to the order workflow.",
		}, []string{"job"}),
		orderValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_order_value_total",
			Help: "Estimated value of system orders.",
		}, []string{"job"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replenishment_triggers_processed_total",
			Help: "Triggers processed by type and priority.",
		}, []string{"type", "priority"}),
		successRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "replenishment_job_success_rate",
			Help: "Store success rate of the last run per job type.",
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobsSkipped,
		m.storeErrors,
		m.forecasts,
		m.suggestions,
		m.ordersCreated,
		m.orderValue,
		m.triggers,
		m.successRate,
	)
	return m
}

// ObserveJob records one finished run.
func (m *EngineMetrics) ObserveJob(job, status string, duration time.Duration, successRate float64) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	m.successRate.WithLabelValues(job).Set(successRate)
}

func (m *EngineMetrics) IncJobSkipped(job string) {
	if m == nil {
		return
	}
	m.jobsSkipped.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncStoreError(severity string, err error) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(severity, ClassifyError(err)).Inc()
}

func (m *EngineMetrics) IncForecast(method string) {
	if m == nil {
		return
	}
	m.forecasts.WithLabelValues(method).Inc()
}

func (m *EngineMetrics) IncSuggestion(priority string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(priority).Inc()
}

// AddOrders records orders created by a run and their combined value.
func (m *EngineMetrics) AddOrders(job string, count int, value float64) {
	if m == nil {
		return
	}
	if count > 0 {
		m.ordersCreated.WithLabelValues(job).Add(float64(count))
	}
	if value > 0 {
		m.orderValue.WithLabelValues(job).Add(value)
	}
}

func (m *EngineMetrics) IncTrigger(triggerType, priority string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(triggerType, priority).Inc()
}

// ClassifyError maps store errors to a low-cardinality label.
func ClassifyError(err error) string {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, ErrPanic) {
		return ErrorTypePanic
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeDeadline
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return ErrorTypeDB
	}
	var fe interface{ ForecastFailure() bool }
	if errors.As(err, &fe) && fe.ForecastFailure() {
		return ErrorTypeForecast
	}
	return ErrorTypeUnknown
}
