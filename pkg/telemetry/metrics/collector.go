package metrics

import (
	"sync"

	"leadflow-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces label values once a limiter is full.
const otherLabel = "other"

// Collector owns the Prometheus registry and the per-area metric sets.
//
// The accessors return nil when metrics are disabled or the collector itself
// is nil, and every Record method on the per-area sets is a no-op on a nil
// receiver, so callers never need to check whether metrics are on.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	ruleMetrics     *RuleMetrics
	workflowMetrics *WorkflowMetrics
	execLogMetrics  *ExecLogMetrics
}

// NewCollector creates a collector and registers all metrics with registry.
// A nil registry gets a fresh private one.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "relay", Subsystem: "engine"}
//	collector := metrics.NewCollector(cfg, nil)
//	ruleEngine.SetMetrics(collector.Rules())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}
	if cfg.MaxCardinality <= 0 {
		cfg.MaxCardinality = config.DefaultMetricsMaxCardinality
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.ruleMetrics = NewRuleMetrics(cfg, registry)
	c.workflowMetrics = NewWorkflowMetrics(cfg, registry, NewCardinalityLimiter(cfg.MaxCardinality))
	c.execLogMetrics = NewExecLogMetrics(cfg, registry)

	return c
}

// Rules returns the rule engine metrics.
func (c *Collector) Rules() *RuleMetrics {
	if c == nil || !c.config.Enabled {
		return nil
	}
	return c.ruleMetrics
}

// Workflows returns the workflow engine metrics.
func (c *Collector) Workflows() *WorkflowMetrics {
	if c == nil || !c.config.Enabled {
		return nil
	}
	return c.workflowMetrics
}

// ExecLog returns the execution log metrics.
func (c *Collector) ExecLog() *ExecLogMetrics {
	if c == nil || !c.config.Enabled {
		return nil
	}
	return c.execLogMetrics
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct values a label may take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already admitted or can still be.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Label returns value when admitted and "other" otherwise.
func (cl *CardinalityLimiter) Label(value string) string {
	if cl.Allow(value) {
		return value
	}
	return otherLabel
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
