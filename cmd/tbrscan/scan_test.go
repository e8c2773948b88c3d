package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/tbrscan/internal/config"
	"github.com/nao1215/tbrscan/internal/database"
	"github.com/nao1215/tbrscan/internal/model"
	"github.com/nao1215/tbrscan/internal/solver/fakesolver"
)

// TestHelperProcess is not a real test. It is the fake solver executed by
// the scan tests.
func TestHelperProcess(t *testing.T) {
	fakesolver.Main()
}

// lockedBuffer is a bytes.Buffer safe for the concurrent writes of the
// logger and the progress callback.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// parsedScanConfig parses args into a scan command and builds its Config.
func parsedScanConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := NewScanCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error = %v", args, err)
	}
	return buildConfig(cmd)
}

func pointKeys(points []model.ScanParameters) []string {
	keys := make([]string, len(points))
	for i, p := range points {
		keys[i] = p.Key()
	}
	return keys
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("takes no positional arguments", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, []string{"extra"}); err == nil {
			t.Error("expected positional arguments to be rejected")
		}
	})

	t.Run("help explains driving a stock solver", func(t *testing.T) {
		t.Parallel()
		for _, want := range []string{"HDF5 statepoints", "wrapper", "process group"} {
			if !strings.Contains(cmd.Long, want) {
				t.Errorf("expected help to mention %q", want)
			}
		}
	})

	t.Run("has all flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"param", "sweep", "template", "solver", "solver-arg", "solver-env", "threads",
			"timeout", "workdir", "tally", "result-file", "artifact-ext", "batch",
			"config", "json", "markdown", "csv", "output", "no-db", "db-dir",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("flag defaults match config defaults", func(t *testing.T) {
		t.Parallel()
		defaults := map[string]string{
			"solver":      config.DefaultSolver,
			"threads":     strconv.Itoa(config.DefaultThreads),
			"tally":       config.DefaultTally,
			"result-file": config.DefaultResultFile,
			"workdir":     config.DefaultWorkDir,
			"batch":       "0",
		}
		for name, want := range defaults {
			if got := cmd.Flags().Lookup(name).DefValue; got != want {
				t.Errorf("--%s default = %q, want %q", name, got, want)
			}
		}
	})
}

// TestBuildConfig tests assembling the configuration from flags and files.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("params and sweeps expand to their product", func(t *testing.T) {
		t.Parallel()
		cfg, err := parsedScanConfig(t,
			"--param", "inner_radius=50",
			"--sweep", "enrichment_fraction=0.3,0.6",
			"--sweep", "outer_radius=100:120:2",
		)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		want := []string{
			"enrichment_fraction=0.3,inner_radius=50,outer_radius=100",
			"enrichment_fraction=0.3,inner_radius=50,outer_radius=120",
			"enrichment_fraction=0.6,inner_radius=50,outer_radius=100",
			"enrichment_fraction=0.6,inner_radius=50,outer_radius=120",
		}
		if diff := cmp.Diff(want, pointKeys(cfg.Points)); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("explicit flags override defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := parsedScanConfig(t,
			"--param", "outer_radius=100",
			"--solver", "/opt/openmc/bin/openmc",
			"--solver-arg", "--event",
			"--solver-env", "OPENMC_CROSS_SECTIONS=/data/cross_sections.xml",
			"--threads", "4",
			"--timeout", "30m",
			"--workdir", "/scratch/runs",
			"--tally", "heating",
			"--result-file", "tbr.out",
			"--artifact-ext", "yaml",
			"--batch", "3",
			"--markdown",
			"--output", "reports/scan.md",
			"--no-db",
		)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Solver != "/opt/openmc/bin/openmc" || cfg.Threads != 4 || cfg.Timeout != 30*time.Minute {
			t.Errorf("unexpected solver settings: %+v", cfg)
		}
		if diff := cmp.Diff([]string{"--event"}, cfg.SolverArgs); diff != "" {
			t.Errorf("solver args mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"OPENMC_CROSS_SECTIONS=/data/cross_sections.xml"}, cfg.SolverEnv); diff != "" {
			t.Errorf("solver env mismatch (-want +got):\n%s", diff)
		}
		if cfg.WorkDir != "/scratch/runs" || cfg.Tally != "heating" || cfg.ResultFile != "tbr.out" ||
			cfg.ArtifactExt != "yaml" || cfg.BatchSize != 3 {
			t.Errorf("unexpected scan layout: %+v", cfg)
		}
		if !cfg.MarkdownReport || cfg.ReportFile != "reports/scan.md" || cfg.SaveToDB {
			t.Errorf("unexpected output settings: %+v", cfg)
		}
	})

	t.Run("loads points and settings from the config file", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, `
template: geometry/blanket.hcl
solver:
  binary: openmc-dev
  threads: 2
scan:
  workdir: file-runs
params:
  inner_radius: 50
sweep:
  - name: outer_radius
    values: [100, 110]
`)
		cfg, err := parsedScanConfig(t, "--config", path, "--threads", "8")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("got config path %q", cfg.ConfigFilePath)
		}
		if cfg.TemplatePath != filepath.Join(filepath.Dir(path), "geometry", "blanket.hcl") {
			t.Errorf("template not resolved against the file: %q", cfg.TemplatePath)
		}
		if cfg.Solver != "openmc-dev" || cfg.WorkDir != "file-runs" {
			t.Errorf("file settings not applied: %+v", cfg)
		}
		if cfg.Threads != 8 {
			t.Errorf("flag should win over the file, got threads %d", cfg.Threads)
		}
		want := []string{"inner_radius=50,outer_radius=100", "inner_radius=50,outer_radius=110"}
		if diff := cmp.Diff(want, pointKeys(cfg.Points)); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("command line points replace the file points", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, "params:\n  inner_radius: 50\n  outer_radius: 100\n")
		cfg, err := parsedScanConfig(t, "--config", path, "--param", "outer_radius=200")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if diff := cmp.Diff([]string{"outer_radius=200"}, pointKeys(cfg.Points)); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()
		_, err := parsedScanConfig(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("got %v, expected ErrConfigNotFound", err)
		}
	})

	t.Run("invalid config file is an error", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, "solver: [not, a, mapping]\n")
		if _, err := parsedScanConfig(t, "--config", path); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("rejects malformed params and sweeps", func(t *testing.T) {
		t.Parallel()
		for _, args := range [][]string{
			{"--param", "outer_radius"},
			{"--param", "outer_radius=big"},
			{"--param", "outer_radius=1", "--param", "outer_radius=2"},
			{"--sweep", "outer_radius=1:2"},
			{"--param", "outer_radius=1", "--sweep", "outer_radius=1,2"},
		} {
			if _, err := parsedScanConfig(t, args...); err == nil {
				t.Errorf("expected an error for %v", args)
			}
		}
	})
}

// TestBuildConfigEnv tests the TBRSCAN_* overrides and their precedence.
// It cannot run in parallel because it sets environment variables.
func TestBuildConfigEnv(t *testing.T) {
	path := writeConfigFile(t, "solver:\n  binary: from-file\n  threads: 2\nparams:\n  outer_radius: 100\n")
	t.Setenv("TBRSCAN_SOLVER", "from-env")
	t.Setenv("TBRSCAN_SOLVER_THREADS", "6")
	t.Setenv("TBRSCAN_WORKDIR", "/env/runs")

	cfg, err := parsedScanConfig(t, "--config", path, "--threads", "3")
	if err != nil {
		t.Fatalf("buildConfig() error = %v", err)
	}
	if cfg.Solver != "from-env" {
		t.Errorf("environment should win over the file, got solver %q", cfg.Solver)
	}
	if cfg.Threads != 3 {
		t.Errorf("flag should win over the environment, got threads %d", cfg.Threads)
	}
	if cfg.WorkDir != "/env/runs" {
		t.Errorf("got workdir %q", cfg.WorkDir)
	}
}

// scanEnv is the layout of an end-to-end scan test.
type scanEnv struct {
	workDir string
	dbDir   string
}

func newScanEnv(t *testing.T) scanEnv {
	t.Helper()
	dir := t.TempDir()
	return scanEnv{workDir: filepath.Join(dir, "runs"), dbDir: filepath.Join(dir, "db")}
}

// args returns the scan arguments running the fake solver in mode.
func (e scanEnv) args(mode string, extra ...string) []string {
	args := []string{
		"scan",
		"--solver", fakesolver.Binary(),
		"--workdir", e.workDir,
		"--db-dir", e.dbDir,
		"--batch", "2",
	}
	for _, a := range fakesolver.Args() {
		args = append(args, "--solver-arg="+a)
	}
	for _, kv := range fakesolver.Env(mode) {
		args = append(args, "--solver-env="+kv)
	}
	return append(args, extra...)
}

// runRoot executes the root command and returns stdout and stderr.
func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr lockedBuffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// readResultFiles returns the result file lines of every point directory.
func readResultFiles(t *testing.T, workDir string) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(workDir, "point-*", config.DefaultResultFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		lines = append(lines, strings.TrimSpace(string(data)))
	}
	return lines
}

// TestScanCommand runs complete scans against the fake solver.
func TestScanCommand(t *testing.T) {
	t.Parallel()

	t.Run("writes one result file per point and stores the scan", func(t *testing.T) {
		t.Parallel()
		env := newScanEnv(t)

		stdout, stderr, err := runRoot(t, env.args(fakesolver.ModeSuccess,
			"--param", "inner_radius=50",
			"--sweep", "enrichment_fraction=0.3,0.6",
			"--param", "outer_radius=100",
		)...)
		if err != nil {
			t.Fatalf("scan failed: %v\nstderr:\n%s", err, stderr)
		}

		lines := readResultFiles(t, env.workDir)
		if len(lines) != 2 {
			t.Fatalf("got %d result files, expected 2", len(lines))
		}
		for _, line := range lines {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				t.Fatalf("unexpected result line %q", line)
			}
			mean, _ := strconv.ParseFloat(fields[0], 64)
			std, _ := strconv.ParseFloat(fields[1], 64)
			if math.Abs(mean-1.05) > 1e-9 || math.Abs(std-0.002) > 1e-9 {
				t.Errorf("got result %q, expected Li6 + Li7 sums", line)
			}
		}

		if !strings.Contains(stdout, "TBR SCAN SUMMARY") || !strings.Contains(stdout, "All 2 points succeeded") {
			t.Errorf("unexpected summary:\n%s", stdout)
		}
		if !strings.Contains(stderr, "[2/2]") {
			t.Errorf("expected progress lines:\n%s", stderr)
		}

		db, err := database.Open(env.dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		scans, err := db.ListScans(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(scans) != 1 || scans[0].Succeeded != 2 || scans[0].Template != "spherical_blanket.hcl" {
			t.Errorf("unexpected stored scans: %+v", scans)
		}
	})

	t.Run("writes a JSON summary to a file", func(t *testing.T) {
		t.Parallel()
		env := newScanEnv(t)
		out := filepath.Join(t.TempDir(), "reports", "scan.json")

		stdout, stderr, err := runRoot(t, env.args(fakesolver.ModeSuccess,
			"--param", "enrichment_fraction=0.6",
			"--param", "inner_radius=50",
			"--param", "outer_radius=100",
			"--json", "-o", out, "--no-db",
		)...)
		if err != nil {
			t.Fatalf("scan failed: %v\nstderr:\n%s", err, stderr)
		}
		if stdout != "" {
			t.Errorf("summary should go to the file, got stdout %q", stdout)
		}

		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		var doc struct {
			Summary struct {
				SucceededCount int `json:"succeeded_count"`
			} `json:"summary"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc.Summary.SucceededCount != 1 {
			t.Errorf("got %d succeeded points", doc.Summary.SucceededCount)
		}

		if _, err := os.Stat(filepath.Join(env.dbDir, database.FileName)); !os.IsNotExist(err) {
			t.Error("--no-db should not create the history database")
		}
	})

	t.Run("failing points give a non-zero exit and keep their directories", func(t *testing.T) {
		t.Parallel()
		env := newScanEnv(t)

		stdout, _, err := runRoot(t, env.args(fakesolver.ModeFail,
			"--param", "enrichment_fraction=0.6",
			"--param", "inner_radius=50",
			"--sweep", "outer_radius=100,110",
		)...)
		if !errors.Is(err, errPointsFailed) {
			t.Fatalf("got %v, expected errPointsFailed", err)
		}
		if !strings.Contains(err.Error(), "2 of 2 points failed") {
			t.Errorf("unexpected error message %q", err)
		}
		if !strings.Contains(stdout, "FAILURES") {
			t.Errorf("expected failure section in the summary:\n%s", stdout)
		}

		dirs, _ := filepath.Glob(filepath.Join(env.workDir, "point-*"))
		if len(dirs) != 2 {
			t.Errorf("got %d point directories, expected both to be kept", len(dirs))
		}
		if lines := readResultFiles(t, env.workDir); len(lines) != 0 {
			t.Errorf("failed points should not write results, got %v", lines)
		}
	})

	t.Run("rejects a tally the template does not request", func(t *testing.T) {
		t.Parallel()
		env := newScanEnv(t)
		_, _, err := runRoot(t, env.args(fakesolver.ModeSuccess, "--param", "outer_radius=100", "--tally", "heating")...)
		if err == nil || !strings.Contains(err.Error(), `no tally "heating"`) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("reports configuration errors", func(t *testing.T) {
		t.Parallel()
		env := newScanEnv(t)
		_, _, err := runRoot(t, env.args(fakesolver.ModeSuccess, "--param", "outer_radius=100", "--json", "--csv")...)
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("got %v, expected ErrConflictingReportFormats", err)
		}

		_, _, err = runRoot(t, env.args(fakesolver.ModeSuccess, "--param", "outer_radius=100", "--threads", "0")...)
		if !errors.Is(err, config.ErrInvalidThreads) {
			t.Errorf("got %v, expected ErrInvalidThreads", err)
		}
	})
}
