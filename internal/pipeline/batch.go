package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/model"
	"golang.org/x/sync/errgroup"
)

// Runner clones one seed URL. Cloner is the production implementation.
type Runner interface {
	Clone(ctx context.Context, seedURL string, opts JobOptions) *model.CloneJob
}

// BatchProcessor clones several seed URLs as independent jobs.
// Jobs run concurrently up to the configured limit; downloads inside one
// job stay sequential.
type BatchProcessor struct {
	runner      Runner
	jobOptions  JobOptions
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Non-positive values keep the default of one job at a time.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithJobOptions sets the options passed to every job.
func WithJobOptions(opts JobOptions) BatchOption {
	return func(b *BatchProcessor) {
		b.jobOptions = opts
	}
}

// NewBatchProcessor creates a BatchProcessor running jobs through runner.
func NewBatchProcessor(runner Runner, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		runner:      runner,
		concurrency: config.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch clones every URL and returns the jobs in input order.
// A cancelled context still yields one failed job per URL that had not
// finished; the error return is the context's error in that case.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]*model.CloneJob, error) {
	jobs := make([]*model.CloneJob, len(urls))
	err := bp.ProcessBatchWithCallback(ctx, urls, func(job *model.CloneJob, index int) {
		// Each goroutine owns its index, so no lock is needed.
		jobs[index] = job
	})
	return jobs, err
}

// ProcessBatchWithCallback clones every URL and calls callback with each
// finished job and its index in urls. callback runs on the job's goroutine.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(job *model.CloneJob, index int),
) error {
	bp.logger.Info("starting batch",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seedURL := range urls {
		g.Go(func() error {
			bp.logger.Info("cloning",
				"url", seedURL,
				"index", i+1,
				"total", len(urls),
			)

			job := bp.runner.Clone(ctx, seedURL, bp.jobOptions)
			if job.Succeeded() {
				bp.logger.Info("clone completed", "url", seedURL, "files", len(job.References))
			} else {
				bp.logger.Warn("clone failed", "url", seedURL, "error", job.ErrorText())
			}

			callback(job, i)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Info("batch complete",
		"total_urls", len(urls),
		"elapsed", time.Since(start),
	)
	return ctx.Err()
}
