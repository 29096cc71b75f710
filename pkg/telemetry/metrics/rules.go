package metrics

import (
	"time"

	"leadflow-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks rule evaluation and action dispatch.
//
// Metrics:
//   - relay_engine_rule_evaluations_total: rule evaluations by outcome (matched, unmatched)
//   - relay_engine_rule_evaluation_duration_seconds: time to evaluate all active rules for a lead
//   - relay_engine_rule_actions_total: dispatched actions by type and status
//   - relay_engine_rule_bulk_items_total: bulk apply items by status
type RuleMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	actionsTotal       *prometheus.CounterVec
	bulkItemsTotal     *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	m := &RuleMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations by outcome",
			},
			[]string{"outcome"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Time to evaluate every active rule against one lead",
				Buckets:   cfg.DurationBuckets,
			},
		),

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_actions_total",
				Help:      "Total number of dispatched rule actions by type and status",
			},
			[]string{"action_type", "status"},
		),

		bulkItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_bulk_items_total",
				Help:      "Total number of leads processed by bulk apply by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.actionsTotal,
		m.bulkItemsTotal,
	)

	return m
}

// RecordEvaluation records one evaluation pass over the active rules.
func (m *RuleMetrics) RecordEvaluation(evaluated, matched int, duration time.Duration) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues("matched").Add(float64(matched))
	m.evaluationsTotal.WithLabelValues("unmatched").Add(float64(evaluated - matched))
	m.evaluationDuration.Observe(duration.Seconds())
}

// RecordAction records a dispatched action. Status is one of "applied",
// "skipped" or "error".
func (m *RuleMetrics) RecordAction(actionType, status string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(actionType, status).Inc()
}

// RecordBulkItem records the outcome of one bulk apply item.
func (m *RuleMetrics) RecordBulkItem(success bool) {
	if m == nil {
		return
	}
	m.bulkItemsTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
