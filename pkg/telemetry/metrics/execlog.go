package metrics

import (
	"leadflow-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ExecLogMetrics tracks the execution audit log.
//
// Metrics:
//   - relay_engine_execlog_records_total: records by kind and status (written, failed, dropped)
//   - relay_engine_execlog_pruned_total: records removed by retention
//   - relay_engine_execlog_queue_depth: records waiting in the async recorder
type ExecLogMetrics struct {
	recordsTotal *prometheus.CounterVec
	prunedTotal  prometheus.Counter
	queueDepth   prometheus.Gauge
}

// NewExecLogMetrics creates and registers execution log metrics.
func NewExecLogMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ExecLogMetrics {
	m := &ExecLogMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "execlog_records_total",
				Help:      "Total number of execution log records by kind and status",
			},
			[]string{"kind", "status"},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "execlog_pruned_total",
				Help:      "Total number of execution log records removed by retention",
			},
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "execlog_queue_depth",
				Help:      "Number of records waiting to be written",
			},
		),
	}

	registry.MustRegister(
		m.recordsTotal,
		m.prunedTotal,
		m.queueDepth,
	)

	return m
}

// RecordWrite records a storage write attempt.
func (m *ExecLogMetrics) RecordWrite(kind string, err error) {
	if m == nil {
		return
	}
	status := "written"
	if err != nil {
		status = "failed"
	}
	m.recordsTotal.WithLabelValues(kind, status).Inc()
}

// RecordDropped records a record dropped because the buffer was full.
func (m *ExecLogMetrics) RecordDropped(kind string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(kind, "dropped").Inc()
}

// RecordPruned records records removed by retention.
func (m *ExecLogMetrics) RecordPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.prunedTotal.Add(float64(n))
}

// SetQueueDepth sets the number of buffered records.
func (m *ExecLogMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
