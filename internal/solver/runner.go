package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/tbrscan/internal/model"
)

const (
	// DefaultBinary is the solver executable looked up on PATH.
	DefaultBinary = "openmc"

	// DefaultArtifactExt is the extension of the statepoint artifact.
	DefaultArtifactExt = "json"

	// waitDelay bounds how long Run waits for output pipes after the solver
	// has been killed.
	waitDelay = 5 * time.Second
)

// Runner starts the solver for one RunConfig at a time. A Runner holds only
// configuration, so it is safe for concurrent use by the batch workers.
type Runner struct {
	binary      string
	args        []string
	threads     int
	timeout     time.Duration
	env         []string
	tailSize    int
	artifactExt string
	encoder     Encoder
	logger      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary sets the solver executable. A bare name is looked up on PATH.
func WithBinary(binary string) Option {
	return func(r *Runner) {
		r.binary = binary
	}
}

// WithArgs sets extra arguments passed to the solver before --threads.
func WithArgs(args ...string) Option {
	return func(r *Runner) {
		r.args = slices.Clone(args)
	}
}

// WithThreads sets the solver thread count. Values above one add
// "--threads n" to the command line.
func WithThreads(n int) Option {
	return func(r *Runner) {
		r.threads = n
	}
}

// WithTimeout sets the wall clock limit of one invocation. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithEnv appends "KEY=value" entries to the inherited environment.
// Variables the solver needs, such as OPENMC_CROSS_SECTIONS, pass through
// from the parent unless overridden here.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithTailSize sets how many bytes of solver output are kept.
func WithTailSize(n int) Option {
	return func(r *Runner) {
		r.tailSize = n
	}
}

// WithArtifactExt sets the statepoint extension, e.g. "json" or "yaml".
func WithArtifactExt(ext string) Option {
	return func(r *Runner) {
		r.artifactExt = ext
	}
}

// WithEncoder replaces the XML input encoder.
func WithEncoder(enc Encoder) Option {
	return func(r *Runner) {
		r.encoder = enc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner with the given options.
func New(opts ...Option) *Runner {
	r := &Runner{
		binary:      DefaultBinary,
		threads:     1,
		tailSize:    DefaultTailSize,
		artifactExt: DefaultArtifactExt,
		encoder:     XMLEncoder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Binary returns the configured solver executable.
func (r *Runner) Binary() string {
	return r.binary
}

// Threads returns the configured solver thread count.
func (r *Runner) Threads() int {
	return max(1, r.threads)
}

// Args returns the full argument list passed to the solver.
func (r *Runner) Args() []string {
	args := slices.Clone(r.args)
	if r.threads > 1 {
		args = append(args, "--threads", strconv.Itoa(r.threads))
	}
	return args
}

// ArtifactPath returns where the solver will leave its statepoint for cfg.
func (r *Runner) ArtifactPath(cfg *model.RunConfig, workdir string) string {
	name := fmt.Sprintf("statepoint.%d.%s", cfg.Settings.Batches, r.artifactExt)
	return filepath.Join(workdir, name)
}

// Run writes the solver input for cfg into workdir, runs the solver there
// and blocks until it exits.
//
// The returned outcome is non-nil whenever cfg is, including on failure, so
// callers can report the exit code and output tail. Errors are
// *ExecutionError, *TimeoutError, or the wrapped context error when ctx is
// cancelled. Run never removes workdir.
func (r *Runner) Run(ctx context.Context, cfg *model.RunConfig, workdir string) (*model.ProcessOutcome, error) {
	if cfg == nil {
		return nil, r.launchError(workdir, errors.New("nil run configuration"))
	}

	outcome := &model.ProcessOutcome{
		ExitCode:     -1,
		WorkDir:      workdir,
		ArtifactPath: r.ArtifactPath(cfg, workdir),
	}

	if err := os.MkdirAll(workdir, 0o750); err != nil {
		return outcome, r.launchError(workdir, err)
	}
	files, err := r.encoder.Encode(cfg, workdir)
	if err != nil {
		return outcome, r.launchError(workdir, err)
	}
	r.logger.Debug("wrote solver input", "workdir", workdir, "files", len(files))

	path, err := exec.LookPath(r.binary)
	if err != nil {
		return outcome, r.launchError(workdir, err)
	}
	if err := ctx.Err(); err != nil {
		return outcome, fmt.Errorf("solver run in %s not started: %w", workdir, err)
	}

	runCtx, cancel := r.runContext(ctx)
	defer cancel()

	tail := newTailBuffer(r.tailSize)
	cmd := exec.CommandContext(runCtx, path, r.Args()...)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Stdout = tail
	cmd.Stderr = tail
	cmd.WaitDelay = waitDelay
	killTree(cmd)

	r.logger.Info("starting solver", "binary", r.binary, "workdir", workdir, "threads", r.Threads())

	start := time.Now()
	runErr := cmd.Run()
	outcome.Duration = time.Since(start)
	outcome.OutputTail = tail.String()
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr != nil {
		return outcome, r.classify(ctx, runCtx, runErr, outcome)
	}

	if _, err := os.Stat(outcome.ArtifactPath); err != nil {
		return outcome, &ExecutionError{
			Kind:       KindArtifactMissing,
			ExitCode:   outcome.ExitCode,
			WorkDir:    workdir,
			Binary:     r.binary,
			OutputTail: outcome.OutputTail,
			Err:        err,
		}
	}

	r.logger.Info("solver finished",
		"workdir", workdir,
		"duration", outcome.Duration,
		"artifact", filepath.Base(outcome.ArtifactPath),
	)
	return outcome, nil
}

func (r *Runner) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// classify maps a failed cmd.Run to the package error types. Parent
// cancellation is checked first because a parent deadline also expires runCtx.
func (r *Runner) classify(ctx, runCtx context.Context, runErr error, outcome *model.ProcessOutcome) error {
	if err := ctx.Err(); err != nil {
		r.logger.Warn("solver interrupted", "workdir", outcome.WorkDir, "reason", err)
		return fmt.Errorf("solver run in %s interrupted: %w", outcome.WorkDir, err)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("solver killed (timeout)", "workdir", outcome.WorkDir, "timeout", r.timeout)
		return &TimeoutError{
			Timeout:    r.timeout,
			WorkDir:    outcome.WorkDir,
			OutputTail: outcome.OutputTail,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		r.logger.Warn("solver exited non-zero",
			"workdir", outcome.WorkDir,
			"exit_code", exitErr.ExitCode(),
			"output", outcome.OutputTail,
		)
		return &ExecutionError{
			Kind:       KindExit,
			ExitCode:   exitErr.ExitCode(),
			WorkDir:    outcome.WorkDir,
			Binary:     r.binary,
			OutputTail: outcome.OutputTail,
			Err:        runErr,
		}
	}

	err := r.launchError(outcome.WorkDir, runErr)
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		execErr.OutputTail = outcome.OutputTail
	}
	return err
}

func (r *Runner) launchError(workdir string, err error) error {
	r.logger.Error("failed to launch solver", "binary", r.binary, "workdir", workdir, "error", err)
	return &ExecutionError{
		Kind:     KindLaunch,
		ExitCode: -1,
		WorkDir:  workdir,
		Binary:   r.binary,
		Err:      err,
	}
}
