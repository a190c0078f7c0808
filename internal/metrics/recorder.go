package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// Recorder defines observability hooks for builds, stages and the HTTP API.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed|aborted
	ObserveCloneDuration(d time.Duration, success bool)
	IncCloneResult(success bool)
	AddBuildsInFlight(delta int)
	IncHTTPRequest(method, route string, status int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) ObserveCloneDuration(time.Duration, bool)   {}
func (NoopRecorder) IncCloneResult(bool)                        {}
func (NoopRecorder) AddBuildsInFlight(int)                      {}
func (NoopRecorder) IncHTTPRequest(string, string, int)         {}
