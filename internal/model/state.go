package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a scan report is moved to a state
// that cannot follow its current one.
var ErrInvalidTransition = errors.New("invalid scan state transition")

// ScanState is the lifecycle position of one scan point.
//
//	pending -> built -> running -> succeeded -> extracted
//	any non-terminal state -> failed
//
// Design decision: We use iota-based constants like the rest of the model so
// states compare cheaply; String provides the stored and displayed form.
type ScanState int

const (
	// StatePending is a scan point that has not been processed yet.
	StatePending ScanState = iota

	// StateBuilt means a RunConfig was produced from the parameters.
	StateBuilt

	// StateRunning means the solver subprocess has been started.
	StateRunning

	// StateSucceeded means the solver exited cleanly and left its artifact.
	StateSucceeded

	// StateExtracted means the tally was aggregated and the result file written.
	StateExtracted

	// StateFailed means a step failed; the report carries the error.
	StateFailed
)

var stateNames = map[ScanState]string{
	StatePending:   "pending",
	StateBuilt:     "built",
	StateRunning:   "running",
	StateSucceeded: "succeeded",
	StateExtracted: "extracted",
	StateFailed:    "failed",
}

// String returns the lower-case state name.
func (s ScanState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseScanState converts a stored state name back to a ScanState.
func ParseScanState(name string) (ScanState, error) {
	for state, n := range stateNames {
		if n == name {
			return state, nil
		}
	}
	return StatePending, fmt.Errorf("unknown scan state %q", name)
}

// Terminal reports whether no further transition is possible.
func (s ScanState) Terminal() bool {
	return s == StateExtracted || s == StateFailed
}

// CanTransitionTo reports whether next may follow s.
func (s ScanState) CanTransitionTo(next ScanState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next == s+1
}

// MarshalText implements encoding.TextMarshaler.
func (s ScanState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ScanState) UnmarshalText(text []byte) error {
	state, err := ParseScanState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}
