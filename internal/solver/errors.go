package solver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSolverExecution is matched by *ExecutionError.
	ErrSolverExecution = errors.New("solver execution failed")

	// ErrSolverTimeout is matched by *TimeoutError.
	ErrSolverTimeout = errors.New("solver timed out")
)

// FailureKind classifies an execution failure.
type FailureKind string

const (
	// KindLaunch means the solver could not be started: the working
	// directory or the input files could not be written, or the binary was
	// not found.
	KindLaunch FailureKind = "launch"

	// KindExit means the solver exited with a non-zero status.
	KindExit FailureKind = "exit"

	// KindArtifactMissing means the solver exited cleanly but did not leave
	// the expected statepoint artifact.
	KindArtifactMissing FailureKind = "artifact-missing"
)

// ExecutionError describes a failed solver invocation.
type ExecutionError struct {
	Kind       FailureKind
	ExitCode   int
	WorkDir    string
	Binary     string
	OutputTail string
	Err        error
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case KindExit:
		return fmt.Sprintf("solver %s exited with status %d in %s", e.Binary, e.ExitCode, e.WorkDir)
	case KindArtifactMissing:
		return fmt.Sprintf("solver %s left no artifact in %s: %v", e.Binary, e.WorkDir, e.Err)
	default:
		return fmt.Sprintf("failed to launch solver %s in %s: %v", e.Binary, e.WorkDir, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSolverExecution) match.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrSolverExecution
}

// TimeoutError reports a solver that was killed after exceeding its
// wall clock limit.
type TimeoutError struct {
	Timeout    time.Duration
	WorkDir    string
	OutputTail string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("solver killed after %s in %s", e.Timeout, e.WorkDir)
}

// Is makes errors.Is(err, ErrSolverTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrSolverTimeout
}
