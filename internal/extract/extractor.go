package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/tbrscan/internal/model"
)

// DefaultResultFile is the scalar result file written next to the artifact.
const DefaultResultFile = "openmc.out"

// Extractor reads statepoint artifacts and writes result files.
// It holds only configuration and is safe for concurrent use.
type Extractor struct {
	resultFile string
	readers    map[string]Reader
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithResultFile sets the result file name. Relative names are resolved
// against the outcome's working directory.
func WithResultFile(name string) Option {
	return func(e *Extractor) {
		e.resultFile = name
	}
}

// WithReader registers a statepoint reader for a file extension
// (without the leading dot).
func WithReader(ext string, r Reader) Option {
	return func(e *Extractor) {
		e.readers[strings.TrimPrefix(strings.ToLower(ext), ".")] = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor with the given options.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		resultFile: DefaultResultFile,
		readers:    defaultReaders(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// ResultPath returns where the result file for outcome is written.
func (e *Extractor) ResultPath(outcome *model.ProcessOutcome) string {
	if filepath.IsAbs(e.resultFile) {
		return e.resultFile
	}
	return filepath.Join(outcome.WorkDir, e.resultFile)
}

// Extract reads the artifact of outcome, aggregates the named tally and
// writes "<mean> <std-dev>\n" to the result file.
//
// Errors are *ArtifactError and *TallyNotFoundError; a failure to write the
// result file is returned wrapped. Extract is idempotent: running it again on
// the same artifact rewrites the same file content.
func (e *Extractor) Extract(outcome *model.ProcessOutcome, tally string) (*model.RunResult, error) {
	if outcome == nil {
		return nil, &ArtifactError{Err: errors.New("no solver outcome")}
	}

	sp, err := readStatepoint(outcome.ArtifactPath, e.readers)
	if err != nil {
		return nil, err
	}

	t, ok := sp.Find(tally)
	if !ok {
		return nil, &TallyNotFoundError{Path: outcome.ArtifactPath, Tally: tally}
	}

	value := Aggregate(t.Results)
	e.logger.Debug("aggregated tally",
		"tally", tally,
		"rows", len(t.Results),
		"mean", value.Mean,
		"std_dev", value.StdDev,
	)

	path := e.ResultPath(outcome)
	if err := WriteResult(path, value); err != nil {
		return nil, err
	}
	return model.NewRunResult(map[string]model.TallyValue{tally: value}), nil
}

// Aggregate sums the mean column and the standard deviation column of rows,
// in row order.
func Aggregate(rows []Row) model.TallyValue {
	var v model.TallyValue
	for _, r := range rows {
		v.Mean += r.Mean
		v.StdDev += r.StdDev
	}
	return v
}

// FormatResult renders a tally value as the result file line.
func FormatResult(v model.TallyValue) string {
	return model.FormatFloat(v.Mean) + " " + model.FormatFloat(v.StdDev) + "\n"
}

// WriteResult writes the result file line for v to path.
func WriteResult(path string, v model.TallyValue) error {
	if err := os.WriteFile(path, []byte(FormatResult(v)), 0o600); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}
