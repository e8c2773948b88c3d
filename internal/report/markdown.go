package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/tbrscan/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for lab notebooks and sharing results.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, alerts and mermaid charts without
// hand-escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.ScanSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcome(md, summary)
	w.writePoints(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.ScanSummary) {
	md.H1("TBR Scan Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scan ID", "`" + summary.ID.String() + "`"},
			{"Template", summary.Template},
			{"Tally", "`" + summary.Tally + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Points", strconv.Itoa(summary.Total())},
		},
	})
	md.PlainText("")
}

// writeOutcome writes the succeeded/failed counts, a pie chart and an alert.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, summary *model.ScanSummary) {
	md.H2("Outcome")
	md.PlainText("")

	cancelled := 0
	for _, r := range summary.Reports {
		if r.Cancelled {
			cancelled++
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Points"},
		Rows: [][]string{
			{"✅ Succeeded", strconv.Itoa(summary.SucceededCount)},
			{"❌ Failed", strconv.Itoa(summary.FailedCount - cancelled)},
			{"⏹️ Cancelled", strconv.Itoa(cancelled)},
		},
	})
	md.PlainText("")

	if summary.Total() > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Scan Point Outcomes"),
			piechart.WithShowData(true),
		)
		if summary.SucceededCount > 0 {
			chart.LabelAndIntValue("Succeeded", uint64(summary.SucceededCount))
		}
		if failed := summary.FailedCount - cancelled; failed > 0 {
			chart.LabelAndIntValue("Failed", uint64(failed))
		}
		if cancelled > 0 {
			chart.LabelAndIntValue("Cancelled", uint64(cancelled))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case cancelled > 0:
		md.Warningf("The scan was cancelled; %d point(s) did not finish and their working directories were removed.", cancelled)
	case summary.HasFailures():
		md.Cautionf("%d of %d point(s) failed. Their working directories are kept for inspection.",
			summary.FailedCount, summary.Total())
	default:
		md.Tip("All points succeeded.")
	}
	md.PlainText("")
}

// writePoints writes the table of points and their tally values.
func (w *MarkdownWriter) writePoints(md *markdown.Markdown, summary *model.ScanSummary) {
	md.H2("Points")
	md.PlainText("")

	names := summary.ParameterNames()
	header := append([]string{"#"}, names...)
	header = append(header, "State", "Mean", "Std Dev")

	rows := make([][]string, 0, len(summary.Reports))
	for _, r := range summary.Reports {
		row := []string{strconv.Itoa(r.Index)}
		for _, name := range names {
			row = append(row, parameterCell(r, name))
		}
		mean, std := valueCells(r, summary.Tally)
		row = append(row, stateLabel(r), mean, std)
		rows = append(rows, row)
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes a collapsible diagnostic for every failed point.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.ScanSummary) {
	failed := summary.Failed()
	if len(failed) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")
	for _, r := range failed {
		detail := r.ErrorMessage
		if r.Outcome != nil && r.Outcome.OutputTail != "" {
			detail += "\n\n```\n" + r.Outcome.OutputTail + "\n```"
		}
		md.Details("Point "+strconv.Itoa(r.Index)+": "+r.Parameters.Key(), detail)
	}
	md.PlainText("")
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Summary generated by tbrscan*")
}
