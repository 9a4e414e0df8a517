package metrics

import "time"

// Recorder defines a minimal interface for recording operation metrics.
// Components depend on it rather than on concrete metric types.
type Recorder interface {
	// RecordOperation records an operation with its status ("success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records how long an operation took.
	RecordDuration(operation string, d time.Duration)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string)       {}
func (NopRecorder) RecordDuration(string, time.Duration) {}
