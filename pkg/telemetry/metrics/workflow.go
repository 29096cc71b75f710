package metrics

import (
	"time"

	"leadflow-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics tracks workflow executions and steps.
//
// Metrics:
//   - relay_engine_workflow_executions_total: finished executions by workflow and status
//   - relay_engine_workflow_execution_duration_seconds: wall time of executions that ran without suspending
//   - relay_engine_workflow_steps_total: steps by type and status
//   - relay_engine_workflow_step_duration_seconds: step handler duration by type
//   - relay_engine_workflow_suspended: executions currently waiting on a delay step
//   - relay_engine_workflow_resumes_total: resumed executions by source (timer, sweep)
type WorkflowMetrics struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	stepsTotal        *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	suspended         prometheus.Gauge
	resumesTotal      *prometheus.CounterVec

	workflows *CardinalityLimiter
}

// NewWorkflowMetrics creates and registers workflow metrics. The limiter
// caps the workflow_id label.
func NewWorkflowMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry, limiter *CardinalityLimiter) *WorkflowMetrics {
	m := &WorkflowMetrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "workflow_executions_total",
				Help:      "Total number of finished workflow executions by status",
			},
			[]string{"workflow_id", "status"},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "workflow_execution_duration_seconds",
				Help:      "Duration of workflow execution runs in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"workflow_id"},
		),

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "workflow_steps_total",
				Help:      "Total number of executed workflow steps by type and status",
			},
			[]string{"step_type", "status"},
		),

		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "workflow_step_duration_seconds",
				Help:      "Duration of workflow step handlers in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"step_type"},
		),

		suspended: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "workflow_suspended",
				Help:      "Number of executions waiting on a delay step",
			},
		),

		resumesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "workflow_resumes_total",
				Help:      "Total number of resumed executions by source",
			},
			[]string{"source"},
		),

		workflows: limiter,
	}

	registry.MustRegister(
		m.executionsTotal,
		m.executionDuration,
		m.stepsTotal,
		m.stepDuration,
		m.suspended,
		m.resumesTotal,
	)

	return m
}

// RecordExecution records an execution reaching status. Duration covers
// the run that produced status, not time spent suspended.
func (m *WorkflowMetrics) RecordExecution(workflowID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	label := m.workflows.Label(workflowID)
	m.executionsTotal.WithLabelValues(label, status).Inc()
	m.executionDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordStep records one step handler run.
func (m *WorkflowMetrics) RecordStep(stepType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(stepType, statusLabel(success)).Inc()
	m.stepDuration.WithLabelValues(stepType).Observe(duration.Seconds())
}

// SetSuspended sets the number of suspended executions.
func (m *WorkflowMetrics) SetSuspended(n int) {
	if m == nil {
		return
	}
	m.suspended.Set(float64(n))
}

// RecordResume records a resumed execution. Source is "timer" or "sweep".
func (m *WorkflowMetrics) RecordResume(source string) {
	if m == nil {
		return
	}
	m.resumesTotal.WithLabelValues(source).Inc()
}
