// Package metrics provides build and API metrics for forgebuild.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics can be disabled without nil checks:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	orch := pipeline.New(deps).WithRecorder(recorder)
//
// The registry is exposed over HTTP by HTTPHandler.
package metrics
