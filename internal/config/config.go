package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/tbrscan/internal/model"
)

// Default configuration values.
// These values are used when no explicit configuration is provided.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "tbrscan"

	// DefaultSolver is the transport solver binary looked up on PATH.
	DefaultSolver = "openmc"

	// DefaultThreads is the number of threads given to each solver process.
	DefaultThreads = 1

	// DefaultTimeout is the wall-clock limit of one solver run.
	// Zero means no limit.
	DefaultTimeout time.Duration = 0

	// DefaultTally is the tally whose value is aggregated.
	DefaultTally = "TBR"

	// DefaultResultFile is the result file written in each point directory.
	DefaultResultFile = "openmc.out"

	// DefaultArtifactExt is the extension of the solver's statepoint file.
	DefaultArtifactExt = "json"

	// DefaultWorkDir is the directory under which point directories are created.
	DefaultWorkDir = "runs"
)

// Config holds all configuration options for a scan.
// It is populated from defaults, the config file, the environment and
// command-line flags.
//
// Design decision: We use a flat structure rather than nested structs
// to simplify flag binding and make the configuration easy to understand.
type Config struct {
	// TemplatePath is the HCL geometry template. Empty selects the
	// embedded spherical blanket.
	TemplatePath string

	// Solver is the solver binary, a name on PATH or a path.
	Solver string

	// SolverArgs are extra arguments passed to the solver.
	SolverArgs []string

	// SolverEnv are KEY=VALUE entries added to the solver's environment,
	// e.g. OPENMC_CROSS_SECTIONS.
	SolverEnv []string

	// Threads is the thread count of each solver process.
	Threads int

	// Timeout limits each solver run. Zero means no limit.
	Timeout time.Duration

	// WorkDir is the parent of every point's working directory.
	WorkDir string

	// Tally names the tally aggregated into the result file.
	Tally string

	// ResultFile is the result file name inside each point directory.
	ResultFile string

	// ArtifactExt is the extension of the statepoint the solver writes.
	ArtifactExt string

	// BatchSize is the number of points run concurrently.
	// Zero sizes the batch from the CPU count and Threads.
	BatchSize int

	// Verbose enables detailed logging.
	Verbose bool

	// ConfigFilePath is the path to the .tbrscan configuration file.
	ConfigFilePath string

	// Points are the parameter tuples to run, in order.
	Points []model.ScanParameters

	// JSONReport enables JSON output format.
	JSONReport bool

	// MarkdownReport enables Markdown output format.
	MarkdownReport bool

	// CSVReport enables CSV output format.
	CSVReport bool

	// ReportFile is the path to write the summary to.
	// If empty, the summary is written to stdout.
	ReportFile string

	// DBDir is the directory of the scan history database.
	DBDir string

	// SaveToDB stores the finished scan in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Solver:      DefaultSolver,
		Threads:     DefaultThreads,
		Timeout:     DefaultTimeout,
		WorkDir:     DefaultWorkDir,
		Tally:       DefaultTally,
		ResultFile:  DefaultResultFile,
		ArtifactExt: DefaultArtifactExt,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for tbrscan.
// This is where the scan history database is stored.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for tbrscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks that the configuration is valid.
// It returns the first sentinel error that applies.
func (c *Config) Validate() error {
	if len(c.Points) == 0 {
		return ErrNoPoints
	}

	if c.Solver == "" {
		return ErrNoSolver
	}

	if c.Threads <= 0 {
		return ErrInvalidThreads
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize < 0 {
		return ErrInvalidBatchSize
	}

	if c.Tally == "" {
		return ErrNoTally
	}

	if c.ArtifactExt == "" || c.ArtifactExt[0] == '.' {
		return ErrInvalidArtifactExt
	}

	if c.WorkDir == "" {
		return ErrNoWorkDir
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.CSVReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	return nil
}
