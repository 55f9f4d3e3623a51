package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/credaudit/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor audits multiple targets concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
// Pipeline stays focused on a single target.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target so that
	// pipeline state doesn't leak between targets.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent audits.
	concurrency int

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

// WithConcurrency sets the maximum number of concurrent audits.
// Default is 2 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// The pipelineFactory function is called once per target.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     defaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatchWithCallback audits targets concurrently and calls callback
// once per audited target, as soon as its audit finishes.
//
// The callback receives the report and the index of the target in
// targets. It is called from the goroutine that ran the audit, so it must
// be safe for concurrent use. A failed target records its error in its
// report and does not stop the others. The error return is non-nil only
// when the batch was cancelled; targets that never started get no callback.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.AuditReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("auditing target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewAuditReport(target)
			if err := bp.pipelineFactory().Execute(ctx, report); err != nil {
				bp.logger.Warn("audit failed",
					"target", target,
					"error", err,
				)
			} else {
				bp.logger.Info("audit completed",
					"target", target,
					"weak", report.Counters.Weak,
				)
			}

			callback(report, i)

			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return err
}

// defaultBatchConcurrency is the number of targets audited at once.
const defaultBatchConcurrency = 2
