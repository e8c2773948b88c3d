package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/tbrscan/internal/log"
	"github.com/nao1215/tbrscan/internal/model"
)

// errorTailLen is the longest error message shown for a failed point
// unless verbose output is enabled.
const errorTailLen = 160

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display: one aligned row per point
// followed by the diagnostics of failed points.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it pipes cleanly to files and other tools.
type SimpleWriter struct {
	baseWriter

	// verbose shows full error messages and solver output tails.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.ScanSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writePoints(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the summary header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          TBR SCAN SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Scan ID:    %s\n", summary.ID)
	fmt.Fprintf(sb, "Template:   %s\n", summary.Template)
	fmt.Fprintf(sb, "Tally:      %s\n", summary.Tally)
	fmt.Fprintf(sb, "Started:    %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:    %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(sb, "Points:     %d (%d succeeded, %d failed)\n",
		summary.Total(), summary.SucceededCount, summary.FailedCount)
	sb.WriteString("\n")
}

// writePoints writes one aligned row per scan point.
func (w *SimpleWriter) writePoints(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("POINTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	names := summary.ParameterNames()
	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)

	header := append([]string{"#"}, names...)
	header = append(header, "STATE", "MEAN", "STD DEV")
	fmt.Fprintln(tw, "  "+strings.Join(header, "\t"))

	for _, r := range summary.Reports {
		row := []string{fmt.Sprintf("%d", r.Index)}
		for _, name := range names {
			row = append(row, parameterCell(r, name))
		}
		mean, std := valueCells(r, summary.Tally)
		row = append(row, stateLabel(r), mean, std)
		fmt.Fprintln(tw, "  "+strings.Join(row, "\t"))
	}
	_ = tw.Flush() //nolint:errcheck // strings.Builder never fails
	sb.WriteString("\n")
}

// writeFailures writes the diagnostics of every failed point.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.ScanSummary) {
	failed := summary.Failed()
	if len(failed) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range failed {
		fmt.Fprintf(sb, "  [%d] %s (%s)\n", r.Index, r.Parameters.Key(), stateLabel(r))
		msg := r.ErrorMessage
		if !w.verbose {
			msg = log.Truncate(msg, errorTailLen)
		}
		if msg != "" {
			fmt.Fprintf(sb, "    Error:   %s\n", msg)
		}
		if r.WorkDir != "" && !r.Cancelled {
			fmt.Fprintf(sb, "    Workdir: %s\n", r.WorkDir)
		}
		if w.verbose && r.Outcome != nil && r.Outcome.OutputTail != "" {
			sb.WriteString("    Output:\n")
			for _, line := range strings.Split(strings.TrimRight(r.Outcome.OutputTail, "\n"), "\n") {
				fmt.Fprintf(sb, "      %s\n", line)
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the summary footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if summary.HasFailures() {
		fmt.Fprintf(sb, "%d of %d points failed\n", summary.FailedCount, summary.Total())
	} else {
		fmt.Fprintf(sb, "All %d points succeeded\n", summary.Total())
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
