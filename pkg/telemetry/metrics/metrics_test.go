package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

func counterValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		matched := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && lp.GetValue() != want {
				matched = false
			}
		}
		if matched && len(m.GetLabel()) == len(labels) {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestRecordValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)

	m.RecordValidation("valid", 0)
	m.RecordValidation("invalid", 3)
	m.RecordValidation("invalid", 2)

	validations := gatherFamily(t, reg, "maskwise_policy_validations_total")
	if got := counterValue(validations, map[string]string{"result": "valid"}); got != 1 {
		t.Errorf("valid count = %v, want 1", got)
	}
	if got := counterValue(validations, map[string]string{"result": "invalid"}); got != 2 {
		t.Errorf("invalid count = %v, want 2", got)
	}

	violations := gatherFamily(t, reg, "maskwise_policy_validation_violations_total")
	if got := violations.GetMetric()[0].GetCounter().GetValue(); got != 5 {
		t.Errorf("violation count = %v, want 5", got)
	}
}

func TestRecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)

	m.RecordOperation("create", "success", 5*time.Millisecond)
	m.RecordOperation("create", "success", 7*time.Millisecond)
	m.RecordOperation("update", "error", time.Millisecond)

	operations := gatherFamily(t, reg, "maskwise_policy_operations_total")
	if got := counterValue(operations, map[string]string{"operation": "create", "result": "success"}); got != 2 {
		t.Errorf("create/success = %v, want 2", got)
	}
	if got := counterValue(operations, map[string]string{"operation": "update", "result": "error"}); got != 1 {
		t.Errorf("update/error = %v, want 1", got)
	}

	durations := gatherFamily(t, reg, "maskwise_policy_operation_duration_seconds")
	var createSamples uint64
	for _, metric := range durations.GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "operation" && lp.GetValue() == "create" {
				createSamples = metric.GetHistogram().GetSampleCount()
			}
		}
	}
	if createSamples != 2 {
		t.Errorf("create duration samples = %d, want 2", createSamples)
	}
}

func TestRecordVersionCreated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)

	m.RecordVersionCreated()
	m.RecordVersionCreated()

	versions := gatherFamily(t, reg, "maskwise_policy_versions_created_total")
	if got := versions.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("versions created = %v, want 2", got)
	}
}
