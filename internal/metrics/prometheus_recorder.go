package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PrometheusRecorder implements Recorder using Prometheus metrics. The
// pipeline serves no HTTP, so metrics leave the process through a
// Pushgateway at the end of a run.
type PrometheusRecorder struct {
	registry      *prom.Registry
	phaseDuration *prom.HistogramVec
	runDuration   prom.Histogram
	phaseResults  *prom.CounterVec
	runOutcome    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the run metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "boardci",
		Name:      "phase_duration_seconds",
		Help:      "Duration of individual build phases",
		Buckets:   prom.DefBuckets,
	}, []string{"phase"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "boardci",
		Name:      "run_duration_seconds",
		Help:      "Total pipeline run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "boardci",
		Name:      "phase_results_total",
		Help:      "Phase result counts by outcome",
	}, []string{"phase", "result"})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "boardci",
		Name:      "run_outcomes_total",
		Help:      "Pipeline run outcomes by final status",
	}, []string{"outcome"})
	reg.MustRegister(pr.phaseDuration, pr.runDuration, pr.phaseResults, pr.runOutcome)
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, success bool) {
	if p == nil || p.phaseResults == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	p.phaseResults.WithLabelValues(phase, result).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

// Push sends the collected metrics to a Pushgateway, grouped by board.
func (p *PrometheusRecorder) Push(gatewayURL, board string) error {
	if p == nil || p.registry == nil {
		return nil
	}
	err := push.New(gatewayURL, "boardci").
		Grouping("board", board).
		Gatherer(p.registry).
		Push()
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
