package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoPoints is returned when the scan has no parameter points.
	// This error occurs when neither --param, --sweep nor the config file
	// provides a point.
	ErrNoPoints = errors.New("no scan points: use --param, --sweep or the points section of the config file")

	// ErrNoSolver is returned when the solver binary is empty.
	ErrNoSolver = errors.New("no solver binary specified")

	// ErrInvalidThreads is returned when the solver thread count is not positive.
	ErrInvalidThreads = errors.New("invalid solver threads: must be positive")

	// ErrInvalidTimeout is returned when the per-run timeout is negative.
	// Use 0 for no limit.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is negative.
	// Use 0 to size the batch from the CPU count.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be non-negative")

	// ErrNoTally is returned when no tally name is configured.
	ErrNoTally = errors.New("no tally name specified")

	// ErrInvalidArtifactExt is returned when the artifact extension is empty
	// or starts with a dot.
	ErrInvalidArtifactExt = errors.New("invalid artifact extension: use e.g. json or yaml without a leading dot")

	// ErrNoWorkDir is returned when the scan work root is empty.
	ErrNoWorkDir = errors.New("no working directory specified")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --csv is specified. Only one output format can be used
	// at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: only one of --json, --markdown and --csv can be used")

	// ErrInvalidSweep is returned for a malformed sweep definition.
	ErrInvalidSweep = errors.New("invalid sweep")
)
