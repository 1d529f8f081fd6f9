package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/pipeline"
	"github.com/nao1215/webclone/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clone API over HTTP",
		Long: `Serve starts an HTTP server that clones pages on request and serves the
cloned sites.

Endpoints:
  GET  /api/health            {"status":"healthy"}
  POST /api/clone             {"url":"https://example.com","enhance":false}
  GET  /api/history           recorded runs (?host=example.com&limit=20)
  GET  /api/history/{run_id}  one recorded run
  GET  /cloned_sites/...      cloned files

Requests for the same host are processed one at a time.

Examples:
  # Listen on the default address
  webclone serve

  # Listen on all interfaces and route clones through Tor
  webclone serve -a 0.0.0.0:8000 --tor`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addSessionFlags(cmd)
	cmd.Flags().StringP("addr", "a", config.DefaultServerAddress,
		"Listen address")
	cmd.Flags().Bool("json-logs", false,
		"Write logs as JSON")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if err := applySessionFlags(cmd, cfg); err != nil {
		return err
	}
	var err error
	if cfg.ServerAddress, err = cmd.Flags().GetString("addr"); err != nil {
		return err
	}
	jsonLogs, err := cmd.Flags().GetBool("json-logs")
	if err != nil {
		return err
	}

	// --enhance on serve only sets the default for requests, which may
	// also ask for it themselves, so a missing key is not fatal here.
	enhanceDefault := cfg.Enhance
	cfg.Enhance = false
	if err := cfg.ValidateOptions(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, jsonLogs)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runServe(ctx, cfg, pipeline.JobOptions{
		Enhance:  enhanceDefault,
		Markdown: cfg.MarkdownSnapshot,
	}, logger, cmd.ErrOrStderr())
}

// runServe serves the API until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, defaults pipeline.JobOptions, logger *slog.Logger, progress io.Writer) error {
	r, err := setupRouting(ctx, cfg, logger, progress)
	if err != nil {
		return err
	}
	defer r.Close()

	history, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithJobDefaults(defaults),
	}
	if history != nil {
		defer history.Close()
		opts = append(opts, server.WithHistory(history))
	}
	if cfg.AIAPIKey == "" {
		logger.Warn("no AI API key configured, enhancement requests will be skipped",
			"env", config.EnvAIAPIKey)
	}

	srv := server.New(newCloner(cfg, logger, r, history), cfg.OutputRoot, opts...)
	fmt.Fprintf(progress, "Serving on http://%s (cloned sites under %s)\n", cfg.ServerAddress, cfg.OutputRoot)
	return srv.ListenAndServe(ctx, cfg.ServerAddress)
}
