package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tbrscan/internal/model"
)

// Step is one stage of evaluating a scan point: build, run or extract.
// Each step sees the report as left by the steps before it.
type Step interface {
	// Do advances the point. A returned error fails it.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name identifies the step in logs and in ScanReport.PerformedSteps.
	Name() string
}

// Pipeline runs a fixed sequence of steps for each scan point. A Pipeline
// is safe for concurrent Execute calls once its steps are added.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger routes step logs to logger instead of slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithContinueOnError keeps running the remaining steps after a failure.
// The report keeps the first error; later steps that depend on missing
// products fail on their own. The default is to stop on the first error.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) { p.continueOnError = continueOnError }
}

// New returns an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step after the ones already added.
func (p *Pipeline) AddStep(step Step) {
	p.AddSteps(step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps against one scan point in order and stamps the
// report's start and finish times.
//
// Design decision: cancellation is checked between steps only. The solver
// step kills its own subprocess when ctx ends, so a point interrupted mid-run
// surfaces as a failed step with ctx.Err() set. Either way the point ends up
// Cancelled and failed.
//
// The first step error is returned and recorded in the report. Without
// WithContinueOnError the remaining steps are skipped.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	if report.StartedAt.IsZero() {
		report.StartedAt = time.Now()
	}
	defer func() { report.FinishedAt = time.Now() }()

	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.cancel(report, step, err)
			return err
		}

		p.logger.Debug("running step",
			"step", step.Name(),
			"point", report.Index,
			"parameters", report.Parameters.Key(),
		)
		err := step.Do(ctx, report)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
		if err == nil {
			p.logger.Debug("step done", "step", step.Name(), "point", report.Index, "state", report.State)
			continue
		}

		p.recordFailure(ctx, report, step, err)
		if firstErr == nil {
			firstErr = err
		}
		if !p.continueOnError {
			break
		}
	}
	return firstErr
}

// cancel marks a point that never reached step.
func (p *Pipeline) cancel(report *model.ScanReport, step Step, reason error) {
	p.logger.Warn("scan point cancelled", "step", step.Name(), "point", report.Index, "reason", reason)
	report.Cancelled = true
	report.Fail(fmt.Errorf("scan point cancelled before %s: %w", step.Name(), reason))
}

// recordFailure fails the point. A step that failed because ctx ended
// counts as a cancellation.
func (p *Pipeline) recordFailure(ctx context.Context, report *model.ScanReport, step Step, err error) {
	p.logger.Warn("step failed", "step", step.Name(), "point", report.Index, "error", err)
	report.Fail(err)
	if ctx.Err() != nil {
		report.Cancelled = true
	}
}

// StepCount reports how many steps a point goes through.
func (p *Pipeline) StepCount() int { return len(p.steps) }

// StepNames lists the step names in run order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
