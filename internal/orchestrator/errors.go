package orchestrator

import (
	"errors"
	"fmt"
)

// UserMessage is the only text shown for a run-level failure.
const UserMessage = "Something went wrong during generation. Please try again."

var (
	ErrNoSourceImage = errors.New("no source image")
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrRunReset      = errors.New("run was reset")
)

// RunError is a failure outside the per-item boundary. Item failures never
// produce one.
type RunError struct {
	Cause error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed: %v", e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}
