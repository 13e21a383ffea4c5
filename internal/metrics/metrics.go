package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds the agent's metrics.
type Registry struct {
	RuleOperations  *prometheus.CounterVec
	BackendCommands *prometheus.CounterVec
	ParseSkipped    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	RulesObserved   *prometheus.GaugeVec
	ConvertedRules  *prometheus.CounterVec
	ConversionRuns  *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.RuleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwagent_rule_operations_total",
		Help: "Atomic rule operations applied, by backend, operation and result",
	}, []string{"backend", "operation", "result"})

	r.BackendCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwagent_backend_commands_total",
		Help: "Backend commands executed, by program and outcome",
	}, []string{"program", "outcome"})

	r.ParseSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwagent_parse_skipped_total",
		Help: "Backend output lines or rules that could not be parsed",
	}, []string{"parser"})

	r.QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fwagent_query_duration_seconds",
		Help:    "Time to collect and reconcile the rule set",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	r.RulesObserved = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fwagent_rules_observed",
		Help: "Rules in the last reconciled rule set",
	}, []string{"backend", "zone"})

	r.ConvertedRules = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwagent_converted_rules_total",
		Help: "Rules touched by the protocol conversion workflow, by phase",
	}, []string{"phase"})

	r.ConversionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fwagent_conversion_runs_total",
		Help: "Conversion workflow runs by outcome",
	}, []string{"outcome"})

	return r
}
