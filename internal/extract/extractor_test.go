package extract

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/nao1215/tbrscan/internal/model"
)

const tolerance = 1e-12

func tbrStatepoint() *Statepoint {
	return &Statepoint{
		Batches: 10,
		Tallies: []Tally{
			{
				ID:       1,
				Name:     "TBR",
				Scores:   []string{"(n,Xt)"},
				Nuclides: []string{"Li6", "Li7"},
				Results: []Row{
					{Filter: 3, Nuclide: "Li6", Score: "(n,Xt)", Mean: 0.5, StdDev: 0.01},
					{Filter: 3, Nuclide: "Li7", Score: "(n,Xt)", Mean: 0.3, StdDev: 0.02},
				},
			},
		},
	}
}

func writeArtifact(t *testing.T, name string, sp *Statepoint) *model.ProcessOutcome {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := WriteStatepoint(path, sp); err != nil {
		t.Fatalf("WriteStatepoint() error = %v", err)
	}
	return &model.ProcessOutcome{WorkDir: dir, ArtifactPath: path}
}

func readResultFile(t *testing.T, path string) (float64, float64) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read result file: %v", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		t.Fatalf("result file has %d fields: %q", len(fields), data)
	}
	mean, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		t.Fatal(err)
	}
	std, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		t.Fatal(err)
	}
	return mean, std
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("sums mean and std dev columns", func(t *testing.T) {
		t.Parallel()
		outcome := writeArtifact(t, "statepoint.10.json", tbrStatepoint())

		result, err := New().Extract(outcome, "TBR")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		v, ok := result.Get("TBR")
		if !ok {
			t.Fatal("TBR missing from result")
		}
		if math.Abs(v.Mean-0.8) > tolerance || math.Abs(v.StdDev-0.03) > tolerance {
			t.Errorf("got %+v, expected mean 0.8 and std dev 0.03", v)
		}

		mean, std := readResultFile(t, filepath.Join(outcome.WorkDir, DefaultResultFile))
		if mean != v.Mean || std != v.StdDev {
			t.Errorf("result file has %v %v, expected %v %v", mean, std, v.Mean, v.StdDev)
		}
	})

	t.Run("reads YAML artifacts", func(t *testing.T) {
		t.Parallel()
		outcome := writeArtifact(t, "statepoint.10.yaml", tbrStatepoint())
		result, err := New().Extract(outcome, "TBR")
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if v, _ := result.Get("TBR"); math.Abs(v.Mean-0.8) > tolerance {
			t.Errorf("got mean %v", v.Mean)
		}
	})

	t.Run("single row gives that row", func(t *testing.T) {
		t.Parallel()
		sp := &Statepoint{Tallies: []Tally{{Name: "TBR", Results: []Row{{Mean: 1.05, StdDev: 0.002}}}}}
		outcome := writeArtifact(t, "statepoint.10.json", sp)
		if _, err := New().Extract(outcome, "TBR"); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(outcome.WorkDir, DefaultResultFile))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "1.05 0.002\n" {
			t.Errorf("got %q, expected %q", data, "1.05 0.002\n")
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		outcome := writeArtifact(t, "statepoint.10.json", tbrStatepoint())
		resultPath := filepath.Join(outcome.WorkDir, DefaultResultFile)
		e := New()

		if _, err := e.Extract(outcome, "TBR"); err != nil {
			t.Fatal(err)
		}
		first, _ := os.ReadFile(resultPath)
		if _, err := e.Extract(outcome, "TBR"); err != nil {
			t.Fatal(err)
		}
		second, _ := os.ReadFile(resultPath)
		if string(first) != string(second) {
			t.Errorf("result changed: %q then %q", first, second)
		}
	})

	t.Run("honours an absolute result file", func(t *testing.T) {
		t.Parallel()
		outcome := writeArtifact(t, "statepoint.10.json", tbrStatepoint())
		target := filepath.Join(t.TempDir(), "tbr.out")
		if _, err := New(WithResultFile(target)).Extract(outcome, "TBR"); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(target); err != nil {
			t.Errorf("expected result file at %s: %v", target, err)
		}
	})

	t.Run("reports a missing tally", func(t *testing.T) {
		t.Parallel()
		outcome := writeArtifact(t, "statepoint.10.json", tbrStatepoint())
		_, err := New().Extract(outcome, "heating")
		var notFound *TallyNotFoundError
		if !errors.As(err, &notFound) || notFound.Tally != "heating" {
			t.Fatalf("got %v, expected TallyNotFoundError for heating", err)
		}
		if !errors.Is(err, ErrTallyNotFound) {
			t.Error("expected errors.Is to match ErrTallyNotFound")
		}
	})

	t.Run("reports a missing artifact", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		outcome := &model.ProcessOutcome{WorkDir: dir, ArtifactPath: filepath.Join(dir, "statepoint.10.json")}
		_, err := New().Extract(outcome, "TBR")
		if !errors.Is(err, ErrArtifactUnreadable) {
			t.Errorf("got %v, expected ErrArtifactUnreadable", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Error("expected the cause to be preserved")
		}
	})

	t.Run("reports a corrupt artifact", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "statepoint.10.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := New().Extract(&model.ProcessOutcome{WorkDir: dir, ArtifactPath: path}, "TBR")
		var artifactErr *ArtifactError
		if !errors.As(err, &artifactErr) || artifactErr.Path != path {
			t.Errorf("got %v, expected ArtifactError for %s", err, path)
		}
	})

	t.Run("reports an artifact without tallies", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "statepoint.10.json")
		if err := os.WriteFile(path, []byte(`{"batches": 10}`), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := New().Extract(&model.ProcessOutcome{WorkDir: dir, ArtifactPath: path}, "TBR")
		if !errors.Is(err, ErrArtifactUnreadable) {
			t.Errorf("got %v, expected ErrArtifactUnreadable", err)
		}
	})

	t.Run("rejects an unknown extension", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "statepoint.10.h5")
		if err := os.WriteFile(path, []byte("HDF"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := New().Extract(&model.ProcessOutcome{WorkDir: dir, ArtifactPath: path}, "TBR")
		if !errors.Is(err, ErrArtifactUnreadable) {
			t.Errorf("got %v, expected ErrArtifactUnreadable", err)
		}
	})

	t.Run("uses registered readers", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "statepoint.10.txt")
		if err := os.WriteFile(path, []byte("1.25 0.5"), 0o600); err != nil {
			t.Fatal(err)
		}
		reader := func(data []byte, sp *Statepoint) error {
			fields := strings.Fields(string(data))
			mean, _ := strconv.ParseFloat(fields[0], 64)
			std, _ := strconv.ParseFloat(fields[1], 64)
			sp.Tallies = []Tally{{Name: "TBR", Results: []Row{{Mean: mean, StdDev: std}}}}
			return nil
		}
		result, err := New(WithReader("txt", reader)).Extract(&model.ProcessOutcome{WorkDir: dir, ArtifactPath: path}, "TBR")
		if err != nil {
			t.Fatal(err)
		}
		if v, _ := result.Get("TBR"); v.Mean != 1.25 || v.StdDev != 0.5 {
			t.Errorf("got %+v", v)
		}
	})
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	t.Run("empty rows give zero", func(t *testing.T) {
		t.Parallel()
		if v := Aggregate(nil); v.Mean != 0 || v.StdDev != 0 {
			t.Errorf("got %+v", v)
		}
	})

	t.Run("sums in row order", func(t *testing.T) {
		t.Parallel()
		big, one := 1e16, 1.0
		rows := []Row{{Mean: big, StdDev: 1}, {Mean: one, StdDev: 1}, {Mean: -big, StdDev: 1}}
		v := Aggregate(rows)
		want := (big + one) - big
		if v.Mean != want || v.StdDev != 3 {
			t.Errorf("got %+v, expected mean %v std dev 3", v, want)
		}
	})
}
