package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ScanSummary collects the reports of one scan in input order.
//
// Design decision: The summary keeps the full reports rather than a
// flattened table so every writer (simple, JSON, Markdown, CSV) and the
// history database can choose what to show from the same value.
type ScanSummary struct {
	// ID identifies the scan.
	ID uuid.UUID `json:"id"`

	// Tally is the tally name the scan extracts.
	Tally string `json:"tally"`

	// Template names the geometry template the points were built from.
	Template string `json:"template"`

	// StartedAt is when the scan began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last point finished.
	FinishedAt time.Time `json:"finished_at"`

	// SucceededCount is the number of points that reached StateExtracted.
	SucceededCount int `json:"succeeded_count"`

	// FailedCount is the number of points that failed or were cancelled.
	FailedCount int `json:"failed_count"`

	// Reports are the per-point reports in scan order.
	Reports []*ScanReport `json:"reports"`
}

// NewScanSummary creates a summary and counts the outcomes of reports.
func NewScanSummary(tally, template string, startedAt time.Time, reports []*ScanReport) *ScanSummary {
	s := &ScanSummary{
		ID:         uuid.New(),
		Tally:      tally,
		Template:   template,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Reports:    reports,
	}
	s.Recount()
	return s
}

// Recount refreshes SucceededCount and FailedCount from the reports.
func (s *ScanSummary) Recount() {
	s.SucceededCount, s.FailedCount = 0, 0
	for _, r := range s.Reports {
		if r == nil {
			continue
		}
		if r.Succeeded() {
			s.SucceededCount++
		} else {
			s.FailedCount++
		}
	}
}

// Total returns the number of points in the scan.
func (s *ScanSummary) Total() int {
	return len(s.Reports)
}

// HasFailures reports whether any point did not succeed.
func (s *ScanSummary) HasFailures() bool {
	return s.FailedCount > 0
}

// Failed returns the reports that did not succeed, in scan order.
func (s *ScanSummary) Failed() []*ScanReport {
	var failed []*ScanReport
	for _, r := range s.Reports {
		if r != nil && !r.Succeeded() {
			failed = append(failed, r)
		}
	}
	return failed
}

// ParameterNames returns the union of parameter names over all points, sorted.
func (s *ScanSummary) ParameterNames() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, r := range s.Reports {
		if r == nil {
			continue
		}
		for _, n := range r.Parameters.Names() {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names
}
