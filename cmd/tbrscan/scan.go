package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/tbrscan/internal/builder"
	"github.com/nao1215/tbrscan/internal/config"
	"github.com/nao1215/tbrscan/internal/database"
	"github.com/nao1215/tbrscan/internal/extract"
	tbrlog "github.com/nao1215/tbrscan/internal/log"
	"github.com/nao1215/tbrscan/internal/model"
	"github.com/nao1215/tbrscan/internal/pipeline"
	"github.com/nao1215/tbrscan/internal/report"
	"github.com/nao1215/tbrscan/internal/solver"
	"github.com/spf13/cobra"
)

// errPointsFailed is returned when a scan finished but some points failed.
// The summary has already been printed at that point.
var errPointsFailed = errors.New("scan points failed")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a parametric TBR scan",
		Long: `Scan runs the transport solver once per parameter point and extracts the
tritium breeding ratio of each run.

Points come from fixed parameters (--param) and sweeps (--sweep), whose
Cartesian product is scanned, or from the params, sweep and points sections
of the configuration file. Parameters given on the command line replace
the points of the configuration file.

Every point runs in its own directory below --workdir, which holds the
generated solver inputs, the solver's statepoint and the result file
(openmc.out by default) with the mean and standard deviation of the tally.
Directories of failed points are kept for inspection.

Solver inputs list materials by element and the statepoint is read as JSON
or YAML (--artifact-ext). A stock openmc binary expands elements itself and
writes HDF5 statepoints, so point --solver at a wrapper that converts them.
A timeout or cancellation kills the solver's whole process group.

Examples:
  # Run a single point
  tbrscan scan --param enrichment_fraction=0.6 --param inner_radius=500 \
    --param outer_radius=600

  # Scan blanket thickness for three enrichments (15 points)
  tbrscan scan --param inner_radius=500 \
    --sweep enrichment_fraction=0.3,0.6,0.9 --sweep outer_radius=550:750:5

  # Use a custom geometry and 4 threads per solver run
  tbrscan scan --template blanket.hcl --threads 4 --sweep outer_radius=550:750:5

  # Write a Markdown summary to a file
  tbrscan scan -c study.yaml --markdown -o reports/study.md

Environment variables:
  TBRSCAN_TEMPLATE, TBRSCAN_SOLVER, TBRSCAN_SOLVER_THREADS, TBRSCAN_TIMEOUT,
  TBRSCAN_WORKDIR and TBRSCAN_DB_DIR override the configuration file and
  are overridden by flags.`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	// Point flags
	cmd.Flags().StringArrayP("param", "p", nil,
		"Fixed parameter name=value shared by every point (repeatable)")
	cmd.Flags().StringArrayP("sweep", "s", nil,
		"Scanned parameter name=start:stop:steps or name=v1,v2,... (repeatable)")

	// Model and solver flags
	cmd.Flags().StringP("template", "t", "",
		"Geometry template (default: built-in spherical blanket)")
	cmd.Flags().String("solver", config.DefaultSolver,
		"Solver binary, a name on PATH or a path")
	cmd.Flags().StringArray("solver-arg", nil,
		"Extra argument passed to the solver (repeatable)")
	cmd.Flags().StringArray("solver-env", nil,
		"KEY=VALUE added to the solver's environment (repeatable)")
	cmd.Flags().Int("threads", config.DefaultThreads,
		"Threads given to each solver process")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Wall-clock limit of each solver run (0 for no limit)")
	cmd.Flags().String("artifact-ext", config.DefaultArtifactExt,
		"Extension of the statepoint file the solver writes")

	// Scan layout flags
	cmd.Flags().StringP("workdir", "w", config.DefaultWorkDir,
		"Parent directory of the point working directories")
	cmd.Flags().String("tally", config.DefaultTally,
		"Tally aggregated into the result file")
	cmd.Flags().String("result-file", config.DefaultResultFile,
		"Result file written in each point directory")
	cmd.Flags().IntP("batch", "b", 0,
		"Number of points run concurrently (0: CPU count divided by --threads)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .tbrscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown and --csv)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json and --csv)")
	cmd.Flags().Bool("csv", false,
		"Output CSV summary (mutually exclusive with --json and --markdown)")
	cmd.Flags().StringP("output", "o", "",
		"Write summary to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not store the scan in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, _ []string) error {
	// Build config from defaults, config file, environment and flags
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	logger := tbrlog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling running points...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the config file, the environment and
// the cobra command flags, in increasing precedence. Flags only override
// when they were set explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently continue without one.
	if found := config.FindConfigFile(configPath); found != "" {
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		file.Apply(cfg)
		cfg.Points, err = file.ScanPoints()
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", found, err)
		}
		cfg.ConfigFilePath = found
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	points, err := pointsFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	if points != nil {
		cfg.Points = points
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// applyFlags copies the explicitly set flags into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("template") {
		if cfg.TemplatePath, err = flags.GetString("template"); err != nil {
			return err
		}
	}
	if flags.Changed("solver") {
		if cfg.Solver, err = flags.GetString("solver"); err != nil {
			return err
		}
	}
	if flags.Changed("solver-arg") {
		if cfg.SolverArgs, err = flags.GetStringArray("solver-arg"); err != nil {
			return err
		}
	}
	if flags.Changed("solver-env") {
		extra, err := flags.GetStringArray("solver-env")
		if err != nil {
			return err
		}
		cfg.SolverEnv = append(cfg.SolverEnv, extra...)
	}
	if flags.Changed("threads") {
		if cfg.Threads, err = flags.GetInt("threads"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("artifact-ext") {
		if cfg.ArtifactExt, err = flags.GetString("artifact-ext"); err != nil {
			return err
		}
	}
	if flags.Changed("workdir") {
		if cfg.WorkDir, err = flags.GetString("workdir"); err != nil {
			return err
		}
	}
	if flags.Changed("tally") {
		if cfg.Tally, err = flags.GetString("tally"); err != nil {
			return err
		}
	}
	if flags.Changed("result-file") {
		if cfg.ResultFile, err = flags.GetString("result-file"); err != nil {
			return err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	if noDB {
		cfg.SaveToDB = false
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.CSVReport, err = flags.GetBool("csv"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}
	return nil
}

// pointsFromFlags expands --param and --sweep into scan points.
// It returns nil when neither flag was given.
func pointsFromFlags(cmd *cobra.Command) ([]model.ScanParameters, error) {
	assignments, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return nil, err
	}
	sweepDefs, err := cmd.Flags().GetStringArray("sweep")
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 && len(sweepDefs) == 0 {
		return nil, nil
	}

	fixed := make(map[string]float64, len(assignments))
	for _, a := range assignments {
		name, value, err := model.ParseAssignment(a)
		if err != nil {
			return nil, fmt.Errorf("invalid --param: %w", err)
		}
		if _, dup := fixed[name]; dup {
			return nil, fmt.Errorf("invalid --param: %s given more than once", name)
		}
		fixed[name] = value
	}

	sweeps := make([]config.Sweep, 0, len(sweepDefs))
	for _, def := range sweepDefs {
		sw, err := config.ParseSweep(def)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sw)
	}

	return config.ExpandSweeps(fixed, sweeps)
}

// runScan executes the scan and writes its summary.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	tmpl, err := loadTemplate(cfg.TemplatePath)
	if err != nil {
		return err
	}
	if !tmpl.HasTally(cfg.Tally) {
		return fmt.Errorf("template %s defines no tally %q (available: %v)", tmpl.Name(), cfg.Tally, tmpl.Tallies())
	}
	warnUnusedParameters(tmpl, cfg.Points, logger)

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	runner := solver.New(
		solver.WithBinary(cfg.Solver),
		solver.WithArgs(cfg.SolverArgs...),
		solver.WithEnv(cfg.SolverEnv...),
		solver.WithThreads(cfg.Threads),
		solver.WithTimeout(cfg.Timeout),
		solver.WithArtifactExt(cfg.ArtifactExt),
		solver.WithLogger(logger),
	)
	extractor := extract.New(
		extract.WithResultFile(cfg.ResultFile),
		extract.WithLogger(logger),
	)

	concurrency := cfg.BatchSize
	if concurrency == 0 {
		concurrency = pipeline.DefaultConcurrency(cfg.Threads)
	}
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.NewScanPipeline(tmpl, runner, extractor, cfg.Tally, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(concurrency),
		pipeline.WithWorkRoot(cfg.WorkDir),
		pipeline.WithBatchLogger(logger),
	)

	total := len(cfg.Points)
	fmt.Fprintf(stderr, "Scanning %d points of %s with %s (concurrency: %d)...\n",
		total, tmpl.Name(), cfg.Solver, bp.Concurrency())

	startedAt := time.Now()

	// Process with callback for streaming progress
	var mu sync.Mutex
	done := 0
	reports, runErr := bp.ProcessBatchWithCallback(ctx, cfg.Points, func(r *model.ScanReport, _ int) {
		mu.Lock()
		defer mu.Unlock()
		done++
		fmt.Fprintf(stderr, "[%d/%d] %s\n", done, total, progressLine(r, cfg.Tally))
	})

	summary := model.NewScanSummary(cfg.Tally, tmpl.Name(), startedAt, reports)
	fmt.Fprintf(stderr, "Scan finished in %s\n\n", summary.FinishedAt.Sub(startedAt).Round(time.Millisecond))

	// Generate and output report
	if err := outputReport(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("scan cancelled after %d of %d points: %w", summary.SucceededCount, total, runErr)
	}

	// Save to database if enabled
	if db != nil {
		if err := db.SaveScan(ctx, summary); err != nil {
			logger.Error("failed to save scan", "scan_id", summary.ID, "error", err)
		} else {
			fmt.Fprintf(stderr, "Saved scan %s to history\n", summary.ID)
		}
	}

	if summary.HasFailures() {
		return fmt.Errorf("%w: %d of %d points failed, see the summary above", errPointsFailed, summary.FailedCount, total)
	}
	return nil
}

// loadTemplate loads the template at path, or the built-in spherical
// blanket when path is empty.
func loadTemplate(path string) (*builder.Template, error) {
	if path == "" {
		return builder.DefaultTemplate()
	}
	tmpl, err := builder.LoadTemplate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return tmpl, nil
}

// warnUnusedParameters logs the parameters that no placeholder of the
// template references. They are usually typos.
func warnUnusedParameters(tmpl *builder.Template, points []model.ScanParameters, logger *slog.Logger) {
	seen := map[string]bool{}
	for _, p := range points {
		for _, name := range tmpl.Unused(p) {
			seen[name] = true
		}
	}
	for _, name := range slices.Sorted(maps.Keys(seen)) {
		logger.Warn("parameter is not used by the template", "parameter", name, "template", tmpl.Name())
	}
}

// progressLine describes a finished point in one line.
func progressLine(r *model.ScanReport, tally string) string {
	if v, ok := r.Value(tally); ok && r.Succeeded() {
		return fmt.Sprintf("%s: %s = %s", r.Parameters.Key(), tally, strings.TrimSpace(extract.FormatResult(v)))
	}
	if r.Cancelled {
		return fmt.Sprintf("%s: cancelled", r.Parameters.Key())
	}
	return fmt.Sprintf("%s: failed: %s (workdir %s)", r.Parameters.Key(), r.ErrorMessage, r.WorkDir)
}

// outputReport writes the summary in the requested format.
func outputReport(cfg *config.Config, summary *model.ScanSummary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output).Write(summary)
	return err
}

// newReportWriter selects the summary writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.CSVReport:
		return report.NewCSVWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
