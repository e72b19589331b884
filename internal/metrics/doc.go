// Package metrics provides observability hooks for build runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	r := runner.New(runner.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// In daemon mode the registry is exposed over HTTP by Server.
package metrics
