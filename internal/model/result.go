package model

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// TallyValue is the aggregated mean and standard deviation of one tally.
type TallyValue struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// RunResult maps tally names to their aggregated values.
// It is immutable once created.
type RunResult struct {
	values map[string]TallyValue
}

// NewRunResult creates a RunResult from a map. The map is copied.
func NewRunResult(values map[string]TallyValue) *RunResult {
	return &RunResult{values: maps.Clone(values)}
}

// Get returns the value of the named tally.
func (r *RunResult) Get(name string) (TallyValue, bool) {
	if r == nil {
		return TallyValue{}, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Names returns the tally names in sorted order.
func (r *RunResult) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.values))
}

// MarshalJSON encodes the result as an object keyed by tally name.
func (r *RunResult) MarshalJSON() ([]byte, error) {
	if r == nil || r.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.values)
}

// UnmarshalJSON decodes an object keyed by tally name.
func (r *RunResult) UnmarshalJSON(data []byte) error {
	var values map[string]TallyValue
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	r.values = values
	return nil
}

// ProcessOutcome describes what a finished solver invocation left behind.
type ProcessOutcome struct {
	// ExitCode is the solver's exit status; -1 when it never started or was killed.
	ExitCode int `json:"exit_code"`

	// ArtifactPath is where the solver's tally artifact is expected.
	ArtifactPath string `json:"artifact_path"`

	// WorkDir is the working directory the solver ran in.
	WorkDir string `json:"work_dir"`

	// OutputTail holds the last bytes of combined stdout and stderr.
	OutputTail string `json:"output_tail,omitempty"`

	// Duration is the wall clock time of the solver process.
	Duration time.Duration `json:"duration"`
}
