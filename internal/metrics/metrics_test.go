package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RunFinished("T", "completed")
	m.RunFinished("T", "completed")
	m.StepExecuted("calculate")
	m.ResolverCalled("alpha", "resolved")
	m.PolicyViolation()
	m.SinkWrite("file", "ok")

	if got := testutil.ToFloat64(m.runs.WithLabelValues("T", "completed")); got != 2 {
		t.Errorf("runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.steps.WithLabelValues("calculate")); got != 1 {
		t.Errorf("steps = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.policyViolations); got != 1 {
		t.Errorf("policy violations = %v, want 1", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RunFinished("T", "completed")
	m.StepExecuted("action")
	m.ResolverCalled("alpha", "fault")
	m.PolicyViolation()
	m.SinkWrite("file", "fault")
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PolicyViolation()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "proseflow_policy_violations_total" {
			found = true
		}
	}
	if !found {
		t.Error("policy violation counter not registered")
	}
}
