package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetIsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Fatalf("Get() returned different registries")
	}
}

func TestRuleOperationsCounter(t *testing.T) {
	c := Get().RuleOperations.WithLabelValues("test", "insert", "success")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}
