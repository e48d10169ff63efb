// Package metrics exposes the engine's Prometheus collectors. All methods
// are nil-receiver safe so instrumentation stays optional.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	runs             *prometheus.CounterVec
	steps            *prometheus.CounterVec
	resolverCalls    *prometheus.CounterVec
	policyViolations prometheus.Counter
	sinkWrites       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proseflow_workflow_runs_total",
			Help: "Workflow executions by workflow name and outcome.",
		}, []string{"workflow", "outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proseflow_steps_total",
			Help: "Executed steps by kind.",
		}, []string{"kind"}),
		resolverCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proseflow_resolver_calls_total",
			Help: "Resolver invocations by resolver name and outcome.",
		}, []string{"resolver", "outcome"}),
		policyViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proseflow_policy_violations_total",
			Help: "Dispatches refused because the resolver was not in the allow-list.",
		}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proseflow_sink_writes_total",
			Help: "Persist operations by sink name and outcome.",
		}, []string{"sink", "outcome"}),
	}
	reg.MustRegister(m.runs, m.steps, m.resolverCalls, m.policyViolations, m.sinkWrites)
	return m
}

func (m *Metrics) RunFinished(workflow, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(workflow, outcome).Inc()
}

func (m *Metrics) StepExecuted(kind string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(kind).Inc()
}

func (m *Metrics) ResolverCalled(resolver, outcome string) {
	if m == nil {
		return
	}
	m.resolverCalls.WithLabelValues(resolver, outcome).Inc()
}

func (m *Metrics) PolicyViolation() {
	if m == nil {
		return
	}
	m.policyViolations.Inc()
}

func (m *Metrics) SinkWrite(sink, outcome string) {
	if m == nil {
		return
	}
	m.sinkWrites.WithLabelValues(sink, outcome).Inc()
}
