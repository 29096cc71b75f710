// Package metrics exposes Prometheus metrics for the rule engine, the
// workflow engine and the execution log.
//
// All metrics live in the collector's own registry under the configured
// namespace and subsystem (relay_engine_ by default):
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	rulesEngine.SetMetrics(collector.Rules())
//	workflowEngine.SetMetrics(collector.Workflows())
//	router.Handle("/metrics", collector.Handler())
//
// Workflow ids are used as a label value; a CardinalityLimiter folds ids
// beyond MaxCardinality into "other".
package metrics
