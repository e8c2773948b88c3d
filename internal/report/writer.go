package report

import (
	"io"

	"github.com/nao1215/tbrscan/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer renders a finished scan summary in one output format.
type Writer interface {
	// Write renders the summary and reports the bytes written.
	Write(summary *model.ScanSummary) (int, error)
}

// MultiWriter fans one summary out to several Writers, for example a
// terminal table plus a JSON file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the summary with each Writer in turn and stops at the first
// error. The byte count is the sum over all writers.
func (m *MultiWriter) Write(summary *model.ScanSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the destination shared by every format.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// stateLabel returns the display label of a point, e.g. "Extracted" or
// "Cancelled".
func stateLabel(r *model.ScanReport) string {
	if r.Cancelled {
		return titleCaser.String("cancelled")
	}
	return titleCaser.String(r.State.String())
}

// valueCells returns the mean and standard deviation of a point as text,
// or two dashes when the point has no result.
func valueCells(r *model.ScanReport, tally string) (string, string) {
	v, ok := r.Value(tally)
	if !ok {
		return "-", "-"
	}
	return model.FormatFloat(v.Mean), model.FormatFloat(v.StdDev)
}

// parameterCell returns the value of a parameter as text, or an empty string
// when the point does not set it.
func parameterCell(r *model.ScanReport, name string) string {
	v, ok := r.Parameters.Get(name)
	if !ok {
		return ""
	}
	return model.FormatFloat(v)
}
