package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncPhaseResult("distclean", true)
	pr.IncPhaseResult("all", false)
	pr.IncRunOutcome("failed")
	pr.ObservePhaseDuration("all", 2*time.Second)
	pr.ObserveRunDuration(5 * time.Second)

	if got := testutil.ToFloat64(pr.phaseResults.WithLabelValues("distclean", "success")); got != 1 {
		t.Errorf("expected 1 distclean success, got %v", got)
	}
	if got := testutil.ToFloat64(pr.phaseResults.WithLabelValues("all", "failure")); got != 1 {
		t.Errorf("expected 1 all failure, got %v", got)
	}
	if got := testutil.ToFloat64(pr.runOutcome.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed outcome, got %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncPhaseResult("all", true)
	pr.IncRunOutcome("success")
	pr.ObservePhaseDuration("all", time.Second)
	pr.ObserveRunDuration(time.Second)
	if err := pr.Push("http://localhost:9091", "raspberrypi"); err != nil {
		t.Errorf("nil push should be a no-op: %v", err)
	}
}
