package ffmpeg

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPlan is returned when an edit plan has no segments
	ErrEmptyPlan = errors.New("edit plan has no segments")
	// ErrPipelineExecutionFailed marks failures of the external ffmpeg process
	ErrPipelineExecutionFailed = errors.New("pipeline execution failed")
)

// ExecutionError reports a failed ffmpeg invocation together with the tail
// of its diagnostic output
type ExecutionError struct {
	Binary   string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s exited with status %d: %v", e.Binary, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Binary, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrPipelineExecutionFailed, e.Err}
}
