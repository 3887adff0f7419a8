package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the loan workflow engine.
type Metrics struct {
	config MetricsConfig

	// Intake metrics
	submissions *prometheus.CounterVec

	// Advance metrics
	advancesStarted   prometheus.Counter
	advancesCompleted *prometheus.CounterVec
	advanceDuration   *prometheus.HistogramVec
	activeAdvances    prometheus.Gauge

	// Stage metrics
	stageExecutions *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	stageRetries    *prometheus.CounterVec

	// Decision metrics
	decisions *prometheus.CounterVec

	// Concurrency metrics
	versionConflicts prometheus.Counter

	// Capability client metrics
	capabilityCalls    *prometheus.CounterVec
	capabilityDuration *prometheus.HistogramVec
	capabilityErrors   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "applications_submitted_total",
				Help:      "Total number of loan applications submitted",
			},
			[]string{"product"},
		),

		advancesStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advances_started_total",
				Help:      "Total number of advance operations started",
			},
		),
		advancesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advances_completed_total",
				Help:      "Total number of advance operations completed, by resulting status",
			},
			[]string{"status"},
		),
		advanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "advance_duration_seconds",
				Help:      "Duration of advance operations in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		activeAdvances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_advances",
				Help:      "Current number of in-flight advance operations",
			},
		),

		stageExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_executions_total",
				Help:      "Total number of stage executions, by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of stage executions in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),
		stageRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_retries_total",
				Help:      "Total number of stage retries after transient failures",
			},
			[]string{"stage"},
		),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of final decisions, by outcome",
			},
			[]string{"outcome"},
		),

		versionConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "version_conflicts_total",
				Help:      "Total number of optimistic-concurrency conflicts",
			},
		),

		capabilityCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_calls_total",
				Help:      "Total number of capability client calls",
			},
			[]string{"capability", "operation"},
		),
		capabilityDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capability_call_duration_seconds",
				Help:      "Duration of capability client calls in seconds",
				Buckets:   buckets,
			},
			[]string{"capability", "operation"},
		),
		capabilityErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_errors_total",
				Help:      "Total number of capability client errors",
			},
			[]string{"capability", "operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of workflow errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of workflow errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.submissions,
		m.advancesStarted,
		m.advancesCompleted,
		m.advanceDuration,
		m.activeAdvances,
		m.stageExecutions,
		m.stageDuration,
		m.stageRetries,
		m.decisions,
		m.versionConflicts,
		m.capabilityCalls,
		m.capabilityDuration,
		m.capabilityErrors,
		m.errorsByClass,
		m.errorsByCode,
	)

	return m, nil
}

// Intake Metrics

// RecordSubmission increments the counter for submitted applications.
func (m *Metrics) RecordSubmission(product string) {
	if m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(product).Inc()
}

// Advance Metrics

// RecordAdvanceStarted increments the counter for started advances.
func (m *Metrics) RecordAdvanceStarted() {
	if m.advancesStarted == nil {
		return
	}
	m.advancesStarted.Inc()
	m.activeAdvances.Inc()
}

// RecordAdvanceCompleted records a completed advance with its resulting
// status and duration.
func (m *Metrics) RecordAdvanceCompleted(status string, duration time.Duration) {
	if m.advancesCompleted == nil {
		return
	}
	m.advancesCompleted.WithLabelValues(status).Inc()
	m.advanceDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeAdvances.Dec()
}

// Stage Metrics

// RecordStageExecution records one stage execution.
func (m *Metrics) RecordStageExecution(stage, outcome string, duration time.Duration) {
	if m.stageExecutions == nil {
		return
	}
	m.stageExecutions.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordStageRetry records a stage retry.
func (m *Metrics) RecordStageRetry(stage string) {
	if m.stageRetries == nil {
		return
	}
	m.stageRetries.WithLabelValues(stage).Inc()
}

// Decision Metrics

// RecordDecision records a final decision by outcome.
func (m *Metrics) RecordDecision(outcome string) {
	if m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// Concurrency Metrics

// RecordVersionConflict records a lost optimistic-concurrency race.
func (m *Metrics) RecordVersionConflict() {
	if m.versionConflicts == nil {
		return
	}
	m.versionConflicts.Inc()
}

// Capability Metrics

// RecordCapabilityCall records a capability client call with its duration.
func (m *Metrics) RecordCapabilityCall(capability, operation string, duration time.Duration) {
	if m.capabilityCalls == nil {
		return
	}
	m.capabilityCalls.WithLabelValues(capability, operation).Inc()
	m.capabilityDuration.WithLabelValues(capability, operation).Observe(duration.Seconds())
}

// RecordCapabilityError records a capability client error.
func (m *Metrics) RecordCapabilityError(capability, operation string) {
	if m.capabilityErrors == nil {
		return
	}
	m.capabilityErrors.WithLabelValues(capability, operation).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
