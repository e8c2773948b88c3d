package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/tbrscan/internal/model"
)

// createTestSummary creates a summary with one extracted and one failed point.
func createTestSummary() *model.ScanSummary {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ok := model.NewScanReport(0, model.NewScanParameters(map[string]float64{
		"enrichment_fraction": 0.6,
		"outer_radius":        100,
	}))
	ok.WorkDir = "runs/point-000"
	ok.State = model.StateExtracted
	ok.Result = model.NewRunResult(map[string]model.TallyValue{"TBR": {Mean: 1.05, StdDev: 0.002}})

	bad := model.NewScanReport(1, model.NewScanParameters(map[string]float64{
		"enrichment_fraction": 0.9,
		"inner_radius":        50,
	}))
	bad.WorkDir = "runs/point-001"
	bad.State = model.StateRunning
	bad.Outcome = &model.ProcessOutcome{ExitCode: 3, OutputTail: "ERROR: No cross_sections.xml file was specified\n"}
	bad.Fail(errors.New("solver exited with status 3"))

	return model.NewScanSummary("TBR", "spherical_blanket", started, []*model.ScanReport{ok, bad})
}

// TestSimpleWriter tests the human-readable summary writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and one row per point", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"TBR SCAN SUMMARY",
			"spherical_blanket",
			"2 (1 succeeded, 1 failed)",
			"enrichment_fraction",
			"Extracted",
			"1.05",
			"0.002",
			"1 of 2 points failed",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("lists failures with their working directory", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILURES") || !strings.Contains(output, "solver exited with status 3") {
			t.Errorf("expected failure section:\n%s", output)
		}
		if !strings.Contains(output, "runs/point-001") {
			t.Error("expected failed point's working directory")
		}
		if strings.Contains(output, "cross_sections") {
			t.Error("solver output should only be shown in verbose mode")
		}
	})

	t.Run("verbose mode includes solver output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No cross_sections.xml file was specified") {
			t.Errorf("expected solver output:\n%s", buf.String())
		}
	})

	t.Run("omits failure section when all points succeed", func(t *testing.T) {
		t.Parallel()

		summary := createTestSummary()
		summary.Reports = summary.Reports[:1]
		summary.Recount()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "FAILURES") || !strings.Contains(buf.String(), "All 1 points succeeded") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})
}

// TestJSONWriter tests the JSON summary writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc struct {
			Version string `json:"version"`
			Summary struct {
				Tally          string `json:"tally"`
				SucceededCount int    `json:"succeeded_count"`
				Reports        []struct {
					State      string             `json:"state"`
					Parameters map[string]float64 `json:"parameters"`
					Result     map[string]struct {
						Mean float64 `json:"mean"`
					} `json:"result"`
					Error string `json:"error"`
				} `json:"reports"`
			} `json:"summary"`
		}
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if doc.Version != "v1.2.3" || doc.Summary.Tally != "TBR" || doc.Summary.SucceededCount != 1 {
			t.Errorf("unexpected document: %+v", doc)
		}
		if len(doc.Summary.Reports) != 2 {
			t.Fatalf("got %d reports", len(doc.Summary.Reports))
		}
		first := doc.Summary.Reports[0]
		if first.State != "extracted" || first.Parameters["outer_radius"] != 100 || first.Result["TBR"].Mean != 1.05 {
			t.Errorf("unexpected first report: %+v", first)
		}
		if doc.Summary.Reports[1].Error != "solver exited with status 3" {
			t.Errorf("got error %q", doc.Summary.Reports[1].Error)
		}
	})

	t.Run("produces compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line output")
		}
	})

	t.Run("pretty prints when requested", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"summary\"") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
	})
}

// TestMarkdownWriter tests the Markdown summary writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables, chart and failure details", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected bytes written")
		}

		output := buf.String()
		for _, want := range []string{
			"# TBR Scan Summary",
			"## Points",
			"```mermaid",
			"Succeeded",
			"| Extracted |",
			"## Failures",
			"<details>",
			"solver exited with status 3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("reports cancelled points", func(t *testing.T) {
		t.Parallel()

		summary := createTestSummary()
		summary.Reports[1].Cancelled = true

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Cancelled") || !strings.Contains(buf.String(), "[!WARNING]") {
			t.Errorf("expected cancellation warning:\n%s", buf.String())
		}
	})
}

// TestCSVWriter tests the CSV summary writer.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	summary := createTestSummary()
	if _, err := NewCSVWriter(&buf).Write(summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}

	wantHeader := []string{"index", "id", "enrichment_fraction", "inner_radius", "outer_radius",
		"state", "cancelled", "mean", "std_dev", "workdir", "error"}
	if strings.Join(records[0], ",") != strings.Join(wantHeader, ",") {
		t.Errorf("got header %v", records[0])
	}

	first := records[1]
	if first[0] != "0" || first[1] != summary.Reports[0].ID.String() {
		t.Errorf("unexpected first row %v", first)
	}
	if first[2] != "0.6" || first[3] != "" || first[4] != "100" {
		t.Errorf("unexpected parameter cells %v", first[2:5])
	}
	if first[5] != "extracted" || first[7] != "1.05" || first[8] != "0.002" {
		t.Errorf("unexpected value cells %v", first[5:9])
	}

	second := records[2]
	if second[5] != "failed" || second[7] != "" || second[10] != "solver exited with status 3" {
		t.Errorf("unexpected second row %v", second)
	}
}

// errorWriter is a Writer that always fails.
type errorWriter struct{ err error }

func (w *errorWriter) Write(*model.ScanSummary) (int, error) { return 0, w.err }

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		n, err := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js)).Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
		if n != text.Len()+js.Len() {
			t.Errorf("got %d bytes, expected %d", n, text.Len()+js.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		var after bytes.Buffer
		_, err := NewMultiWriter(&errorWriter{err: boom}, NewSimpleWriter(&after)).Write(createTestSummary())
		if !errors.Is(err, boom) {
			t.Errorf("got %v", err)
		}
		if after.Len() != 0 {
			t.Error("writers after the failing one should not run")
		}
	})
}
