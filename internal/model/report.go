package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScanReport is the record of one scan point as it moves through the pipeline.
// It contains everything needed to understand what happened at that point:
// the inputs, the built configuration, the solver outcome and the result.
//
// Design decision: Like the rest of the pipeline state we use a single struct
// that each step fills in, rather than passing separate values between
// steps. This keeps serialization to JSON and SQLite straightforward.
type ScanReport struct {
	// === Identity ===

	// ID uniquely identifies the point across scans.
	ID uuid.UUID `json:"id"`

	// Index is the position of the point in the scan, starting at 0.
	Index int `json:"index"`

	// Parameters are the scan inputs of this point.
	Parameters ScanParameters `json:"parameters"`

	// WorkDir is the isolated working directory used for the solver run.
	WorkDir string `json:"work_dir"`

	// === Progress ===

	// State is the current lifecycle state.
	State ScanState `json:"state"`

	// PerformedSteps lists the names of the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// StartedAt is when processing of this point began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when processing ended, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// === Products ===

	// Config is the solver input built from Parameters.
	// It is not serialized; it is rebuilt on demand from the template.
	Config *RunConfig `json:"-"`

	// Outcome is set once the solver has run, even when it failed.
	Outcome *ProcessOutcome `json:"outcome,omitempty"`

	// Result holds the aggregated tally once extracted.
	Result *RunResult `json:"result,omitempty"`

	// === Failure ===

	// Error is the error that failed the point. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the serialized form of Error.
	ErrorMessage string `json:"error,omitempty"`

	// Cancelled is true when the point was interrupted by scan cancellation.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewScanReport creates a pending report for the point at index.
func NewScanReport(index int, params ScanParameters) *ScanReport {
	return &ScanReport{
		ID:         uuid.New(),
		Index:      index,
		Parameters: params,
		State:      StatePending,
	}
}

// Transition moves the report to next, rejecting illegal moves.
func (r *ScanReport) Transition(next ScanState) error {
	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, next)
	}
	r.State = next
	return nil
}

// Fail moves the report to StateFailed and records err.
// A report that already reached a terminal state is left unchanged.
func (r *ScanReport) Fail(err error) {
	if r.State.Terminal() {
		return
	}
	r.State = StateFailed
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Succeeded reports whether the point reached StateExtracted.
func (r *ScanReport) Succeeded() bool {
	return r.State == StateExtracted
}

// ShortID returns the first eight characters of the ID.
func (r *ScanReport) ShortID() string {
	return r.ID.String()[:8]
}

// Value returns the aggregated value of the named tally.
func (r *ScanReport) Value(tally string) (TallyValue, bool) {
	return r.Result.Get(tally)
}

// Duration returns how long the point took to process.
func (r *ScanReport) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
