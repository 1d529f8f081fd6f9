package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/model"
	"github.com/nao1215/webclone/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewCloneCmd creates the clone command.
func NewCloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone [url]...",
		Short: "Clone web pages and their assets",
		Long: `Clone downloads a web page and everything it references.

For every URL the page is fetched once, the references in script, form,
anchor, image, stylesheet and button elements are rewritten to local paths,
the referenced files are downloaded one after another, and the page is
written as <dir>/<host>/index.html. An existing folder for the host is
replaced.

Examples:
  # Clone a page into ./cloned_sites/example.com
  webclone clone https://example.com/

  # Clone three sites, two at a time
  webclone clone -b 2 https://a.example https://b.example https://c.example

  # Clone through a running Tor proxy
  webclone clone --tor https://example.com/

  # Clone an onion service through an embedded Tor daemon
  webclone clone --embedded-tor http://<56 characters>.onion/

  # Render JavaScript first and also write a Markdown snapshot
  webclone clone --render --markdown-snapshot https://example.com/

  # Write a JSON report to a file
  webclone clone --json -o report.json https://example.com/

Configuration file (.webclone) example:
  defaults:
    userAgent: "Mozilla/5.0 ..."
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCloneCmd,
	}

	addSessionFlags(cmd)

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites cloned concurrently")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCloneCmd executes the clone command.
func runCloneCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, false)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runClone(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := applySessionFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// runClone clones every target, writes the report and returns an error
// when at least one clone failed.
func runClone(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, progress io.Writer) error {
	logger.Info("starting clone",
		"targets", cfg.Targets,
		"outputRoot", cfg.OutputRoot,
		"tor", cfg.PrivacyRouting(),
		"batchSize", cfg.BatchSize,
	)

	r, err := setupRouting(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}
	defer r.Close()

	history, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	cloner := newCloner(cfg, logger, r, history)
	jobOpts := pipeline.JobOptions{Enhance: cfg.Enhance, Markdown: cfg.MarkdownSnapshot}

	start := time.Now()
	jobs, err := cloneTargets(ctx, cfg, cloner, jobOpts, logger, progress)
	fmt.Fprintf(progress, "Finished in %s\n\n", time.Since(start).Round(time.Millisecond))
	if err != nil {
		return err
	}

	if err := outputReport(cfg, jobs, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	failed := 0
	for _, job := range jobs {
		if !job.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d clones failed", failed, len(jobs))
	}
	return nil
}

// cloneTargets runs one job per target, sequentially for a single target
// and through the batch processor otherwise.
func cloneTargets(
	ctx context.Context,
	cfg *config.Config,
	runner pipeline.Runner,
	jobOpts pipeline.JobOptions,
	logger *slog.Logger,
	progress io.Writer,
) ([]*model.CloneJob, error) {
	if len(cfg.Targets) == 1 {
		fmt.Fprintf(progress, "Cloning %s...\n", cfg.Targets[0])
		return []*model.CloneJob{runner.Clone(ctx, cfg.Targets[0], jobOpts)}, ctx.Err()
	}

	fmt.Fprintf(progress, "Cloning %d sites (concurrency: %d)...\n",
		len(cfg.Targets), cfg.BatchSize)

	bp := pipeline.NewBatchProcessor(runner,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithJobOptions(jobOpts),
		pipeline.WithBatchLogger(logger),
	)

	jobs := make([]*model.CloneJob, len(cfg.Targets))
	var mu sync.Mutex
	done := 0
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(job *model.CloneJob, index int) {
		mu.Lock()
		defer mu.Unlock()
		jobs[index] = job
		done++

		status := "done"
		if !job.Succeeded() {
			status = "failed"
		}
		fmt.Fprintf(progress, "[%d/%d] %s: %s\n", done, len(cfg.Targets), status, job.SeedURL)
	})
	return jobs, err
}

// outputReport writes the report for jobs to the report file or stdout.
func outputReport(cfg *config.Config, jobs []*model.CloneJob, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports can carry URLs with session tokens, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w := newReportWriter(cfg, output)
	if len(jobs) == 1 {
		_, err := w.Write(jobs[0])
		return err
	}
	_, err := w.WriteBatch(jobs)
	return err
}
