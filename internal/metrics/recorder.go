// Package metrics provides observability hooks for pipeline runs.
package metrics

import "time"

// Recorder defines observability hooks for run and phase metrics.
// Implementations may forward to Prometheus; the NoopRecorder is the
// default when metrics are not configured.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncPhaseResult(phase string, success bool)
	IncRunOutcome(outcome string) // outcome: success|failed
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncPhaseResult(string, bool)                {}
func (NoopRecorder) IncRunOutcome(string)                       {}
