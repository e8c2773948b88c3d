package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/nao1215/tbrscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkRoot is the directory under which point directories are created.
const DefaultWorkRoot = "runs"

// DefaultConcurrency returns how many solver processes fit on this machine
// when each one uses threads threads.
func DefaultConcurrency(threads int) int {
	return max(1, runtime.NumCPU()/max(1, threads))
}

// BatchProcessor handles concurrent processing of scan points.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-point execution
// 2. Working directory allocation and cleanup belong to the batch
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each point.
	// We use a factory to ensure each point gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of points run at once.
	concurrency int

	// workRoot is the parent of every point's working directory.
	workRoot string

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent solver runs.
// Non-positive values keep DefaultConcurrency(1).
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithWorkRoot sets the directory under which point directories are created.
func WithWorkRoot(dir string) BatchOption {
	return func(b *BatchProcessor) {
		b.workRoot = dir
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each point to create a fresh
// pipeline instance.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency(1),
		workRoot:        DefaultWorkRoot,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Concurrency returns the configured concurrency limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// NewReports creates one pending report per point, each with its own
// working directory below the work root. Directories are not created here.
func (bp *BatchProcessor) NewReports(points []model.ScanParameters) []*model.ScanReport {
	reports := make([]*model.ScanReport, len(points))
	for i, params := range points {
		r := model.NewScanReport(i, params)
		r.WorkDir = filepath.Join(bp.workRoot, fmt.Sprintf("point-%03d-%s", i, r.ShortID()))
		reports[i] = r
	}
	return reports
}

// ProcessBatch runs every point concurrently and returns one report per
// point, in input order.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Failing points never abort the batch; their errors live in the reports.
//
// On cancellation, running solvers are killed, every unfinished point is
// marked cancelled and failed, and its working directory is removed. The
// returned error is the context error in that case and nil otherwise.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, points []model.ScanParameters) ([]*model.ScanReport, error) {
	reports := bp.NewReports(points)
	err := bp.run(ctx, reports, nil)
	return reports, err
}

// ProcessBatchWithCallback runs every point and calls callback as each one
// finishes. This is useful for streaming results.
//
// The callback receives the report and the index of the point in the
// original slice. The callback is called from the goroutine that completed
// the point, so it should be thread-safe if it accesses shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	points []model.ScanParameters,
	callback func(report *model.ScanReport, index int),
) ([]*model.ScanReport, error) {
	reports := bp.NewReports(points)
	err := bp.run(ctx, reports, callback)
	return reports, err
}

func (bp *BatchProcessor) run(ctx context.Context, reports []*model.ScanReport, callback func(*model.ScanReport, int)) error {
	bp.logger.Info("starting scan",
		"points", len(reports),
		"concurrency", bp.concurrency,
		"work_root", bp.workRoot,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, report := range reports {
		g.Go(func() error {
			bp.processPoint(gctx, report, len(reports))
			if callback != nil {
				callback(report, i)
			}
			// Failures are recorded in the report; other points continue.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Goroutines never return errors

	bp.logger.Info("scan complete",
		"points", len(reports),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}

func (bp *BatchProcessor) processPoint(ctx context.Context, report *model.ScanReport, total int) {
	select {
	case <-ctx.Done():
		bp.cancel(ctx, report)
		return
	default:
	}

	bp.logger.Info("running scan point",
		"point", report.Index+1,
		"total", total,
		"parameters", report.Parameters.Key(),
	)

	err := bp.pipelineFactory().Execute(ctx, report)
	if ctx.Err() != nil && !report.Succeeded() {
		bp.cancel(ctx, report)
		return
	}
	if err != nil {
		bp.logger.Warn("scan point failed",
			"point", report.Index+1,
			"workdir", report.WorkDir,
			"error", err,
		)
		return
	}

	bp.logger.Info("scan point completed",
		"point", report.Index+1,
		"duration", report.Duration(),
	)
}

// cancel marks an unfinished point as cancelled and discards its working
// directory. Extracted points are left alone.
func (bp *BatchProcessor) cancel(ctx context.Context, report *model.ScanReport) {
	if report.Succeeded() {
		return
	}
	report.Cancelled = true
	report.Fail(fmt.Errorf("scan point cancelled: %w", ctx.Err()))
	if report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now()
	}
	if err := os.RemoveAll(report.WorkDir); err != nil {
		bp.logger.Warn("failed to remove working directory",
			"workdir", report.WorkDir,
			"error", err,
		)
	}
}
