package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
	// Double registration surfaces as an error, not a panic.
	if err := RegisterMetrics(reg); err == nil {
		t.Error("expected AlreadyRegisteredError on second registration")
	}
}
