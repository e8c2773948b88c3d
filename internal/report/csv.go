package report

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/nao1215/tbrscan/internal/model"
)

// CSVWriter outputs one row per scan point. Parameter columns follow the
// sorted union of parameter names; points that do not set a parameter leave
// its cell empty.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary as CSV with a header row.
func (w *CSVWriter) Write(summary *model.ScanSummary) (int, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	names := summary.ParameterNames()
	header := append([]string{"index", "id"}, names...)
	header = append(header, "state", "cancelled", "mean", "std_dev", "workdir", "error")
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	for _, r := range summary.Reports {
		row := []string{strconv.Itoa(r.Index), r.ID.String()}
		for _, name := range names {
			row = append(row, parameterCell(r, name))
		}
		mean, std := "", ""
		if v, ok := r.Value(summary.Tally); ok {
			mean, std = model.FormatFloat(v.Mean), model.FormatFloat(v.StdDev)
		}
		row = append(row, r.State.String(), strconv.FormatBool(r.Cancelled), mean, std, r.WorkDir, r.ErrorMessage)
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
