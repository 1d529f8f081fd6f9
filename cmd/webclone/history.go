package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/database"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded clone runs",
		Long: `History lists the clone runs recorded in the history database, newest
first. Given a run ID it prints that run in full.

Examples:
  # The last 20 runs
  webclone history

  # All runs for one host as Markdown
  webclone history --host example.com -n 0 --markdown

  # One run with its asset outcomes
  webclone history -v 3f1c9a1e-8a63-4a55-9c1e-6f7e2b1d0c44

  # Hosts that have been cloned
  webclone history --hosts`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("host", "", "Only list runs for this host")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs (0 lists all)")
	cmd.Flags().Bool("hosts", false, "List the hosts that have recorded runs")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	runID     string
	host      string
	limit     int
	listHosts bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var opts historyOptions
	var err error
	if len(args) == 1 {
		opts.runID = args[0]
	}
	if opts.host, err = cmd.Flags().GetString("host"); err != nil {
		return err
	}
	opts.host = strings.ToLower(strings.TrimSpace(opts.host))
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if opts.limit < 0 {
		return fmt.Errorf("invalid limit %d: must be zero or positive", opts.limit)
	}
	if opts.listHosts, err = cmd.Flags().GetBool("hosts"); err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, false)
	return runHistory(cmd.Context(), cfg, opts, logger, cmd.OutOrStdout())
}

// runHistory prints runs, one run, or the recorded hosts.
func runHistory(ctx context.Context, cfg *config.Config, opts historyOptions, logger *slog.Logger, out io.Writer) error {
	// Reading history should never create a database as a side effect.
	dbOpts := database.DefaultOptions()
	dbOpts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, dbOpts)
	if err != nil {
		return fmt.Errorf("failed to open history database in %s: %w", cfg.DBDir, err)
	}
	defer db.Close()
	logger.Debug("history database opened", "path", db.Path())

	switch {
	case opts.listHosts:
		hosts, err := db.ListHosts(ctx)
		if err != nil {
			return err
		}
		for _, h := range hosts {
			fmt.Fprintln(out, h)
		}
		return nil

	case opts.runID != "":
		job, err := db.GetRun(ctx, opts.runID)
		if err != nil {
			return err
		}
		_, err = newReportWriter(cfg, out).Write(job)
		return err

	default:
		runs, err := db.ListRuns(ctx, opts.host, opts.limit)
		if err != nil {
			return err
		}
		_, err = newReportWriter(cfg, out).WriteRuns(runs)
		return err
	}
}
