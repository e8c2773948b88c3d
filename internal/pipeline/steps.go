package pipeline

import (
	"context"
	"errors"

	"github.com/nao1215/tbrscan/internal/builder"
	"github.com/nao1215/tbrscan/internal/model"
)

var (
	// ErrNoConfig is returned by SolveStep when no RunConfig was built.
	ErrNoConfig = errors.New("no run configuration to solve")

	// ErrNoOutcome is returned by ExtractStep when the solver did not run.
	ErrNoOutcome = errors.New("no solver outcome to extract")
)

// Solver runs the transport solver for one configuration.
// *solver.Runner implements it.
type Solver interface {
	Run(ctx context.Context, cfg *model.RunConfig, workdir string) (*model.ProcessOutcome, error)
}

// ResultExtractor reduces a solver outcome to a tally value.
// *extract.Extractor implements it.
type ResultExtractor interface {
	Extract(outcome *model.ProcessOutcome, tally string) (*model.RunResult, error)
}

// BuildStep builds the RunConfig of a point from its parameters.
type BuildStep struct {
	template *builder.Template
}

// NewBuildStep creates a BuildStep for tmpl.
func NewBuildStep(tmpl *builder.Template) *BuildStep {
	return &BuildStep{template: tmpl}
}

// Do implements Step.
func (s *BuildStep) Do(_ context.Context, report *model.ScanReport) error {
	cfg, err := builder.Build(report.Parameters, s.template)
	if err != nil {
		return err
	}
	report.Config = cfg
	return report.Transition(model.StateBuilt)
}

// Name implements Step.
func (s *BuildStep) Name() string {
	return "build"
}

// SolveStep runs the solver in the point's working directory.
type SolveStep struct {
	solver Solver
}

// NewSolveStep creates a SolveStep.
func NewSolveStep(s Solver) *SolveStep {
	return &SolveStep{solver: s}
}

// Do implements Step. The outcome is recorded even when the solver fails.
func (s *SolveStep) Do(ctx context.Context, report *model.ScanReport) error {
	if report.Config == nil {
		return ErrNoConfig
	}
	if err := report.Transition(model.StateRunning); err != nil {
		return err
	}
	outcome, err := s.solver.Run(ctx, report.Config, report.WorkDir)
	report.Outcome = outcome
	if err != nil {
		return err
	}
	return report.Transition(model.StateSucceeded)
}

// Name implements Step.
func (s *SolveStep) Name() string {
	return "solve"
}

// ExtractStep aggregates the requested tally and writes the result file.
type ExtractStep struct {
	extractor ResultExtractor
	tally     string
}

// NewExtractStep creates an ExtractStep for the named tally.
func NewExtractStep(e ResultExtractor, tally string) *ExtractStep {
	return &ExtractStep{extractor: e, tally: tally}
}

// Do implements Step.
func (s *ExtractStep) Do(_ context.Context, report *model.ScanReport) error {
	if report.Outcome == nil {
		return ErrNoOutcome
	}
	result, err := s.extractor.Extract(report.Outcome, s.tally)
	if err != nil {
		return err
	}
	report.Result = result
	return report.Transition(model.StateExtracted)
}

// Name implements Step.
func (s *ExtractStep) Name() string {
	return "extract"
}

// NewScanPipeline assembles the build, solve and extract steps.
func NewScanPipeline(tmpl *builder.Template, s Solver, e ResultExtractor, tally string, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewBuildStep(tmpl),
		NewSolveStep(s),
		NewExtractStep(e, tally),
	)
	return p
}
