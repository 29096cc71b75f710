// Package telemetry groups Relay's observability packages.
//
//   - logging: slog handlers that attach lead, rule, workflow and execution
//     ids from the context and redact PII such as email addresses
//   - metrics: Prometheus collectors for rule evaluation, workflow runs and
//     the execution log
//   - health: liveness and readiness checks served by the operations server
//
// Loggers are built from config.LoggingConfig:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//
// Metrics are optional. A disabled collector hands out nil recorders whose
// methods do nothing, so engines record unconditionally:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	ruleEngine.SetMetrics(collector.Rules())
package telemetry
