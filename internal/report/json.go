package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/tbrscan/internal/model"
)

// JSONWriter renders summaries as a JSON document for downstream analysis
// scripts.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the model types already define their JSON form.
type JSONWriter struct {
	baseWriter

	// version is the tbrscan version recorded in the output.
	version string

	// indent selects MarshalIndent with the prefix and string below.
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent switches to indented output using json.MarshalIndent's prefix
// and indent arguments.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tbrscan version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written by JSONWriter.
//
// Design decision: We wrap the summary rather than adding a version field to
// ScanSummary because the version describes the output, not the scan.
type JSONReport struct {
	// Version is the tbrscan version that generated this report.
	Version string `json:"version,omitempty"`

	// Summary is the scan summary with every point.
	Summary *model.ScanSummary `json:"summary"`
}

// Write outputs the summary in JSON format.
func (w *JSONWriter) Write(summary *model.ScanSummary) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Summary: summary})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	marshal := json.Marshal
	if w.indent {
		marshal = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, w.indentPrefix, w.indentString)
		}
	}
	data, err := marshal(v)
	if err != nil {
		return 0, err
	}
	return w.output.Write(append(data, '\n'))
}
