package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/enhance"
	seclog "github.com/nao1215/webclone/internal/log"
	"github.com/nao1215/webclone/internal/pipeline"
	"github.com/nao1215/webclone/internal/report"
	"github.com/nao1215/webclone/internal/tor"
	"github.com/spf13/cobra"
)

// addSessionFlags registers the flags shared by clone and serve.
func addSessionFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringP("dir", "d", config.DefaultOutputRoot,
		"Directory that receives one folder per cloned site")
	f.StringP("config", "c", "",
		"Configuration file path (default: .webclone in current or home directory)")
	f.DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	f.StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header (a site entry in the config file overrides it)")
	f.Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from a single response (0 disables the limit)")

	// Tor routing
	f.Bool("tor", false,
		"Route all requests through the Tor SOCKS5 proxy given by --tor-proxy")
	f.StringP("tor-proxy", "e", config.DefaultTorProxyAddress,
		"Tor SOCKS5 proxy address (implies --tor when set)")
	f.Bool("embedded-tor", false,
		"Start a private Tor daemon and route all requests through it")
	f.DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Optional steps
	f.Bool("render", false,
		"Load the page in a headless browser so JavaScript-generated content is cloned")
	f.Duration("render-wait", config.DefaultRenderWait,
		"Time to let the page settle after load when --render is set")
	f.Bool("markdown-snapshot", false,
		"Also write index.md, a Markdown rendering of the cloned page")
	f.Bool("enhance", false,
		"Run AI enhancement after a successful clone (needs "+config.EnvAIAPIKey+" or "+config.EnvOpenAIAPIKey+")")
	f.String("ai-base-url", config.DefaultAIBaseURL,
		"OpenAI-compatible API root used by --enhance")
	f.String("ai-model", config.DefaultAIModel,
		"Model used by --enhance")

	// History
	f.Bool("no-history", false,
		"Do not record the run in the history database")
	f.String("db-dir", "",
		"History database directory (default: XDG data directory)")
}

// applySessionFlags copies the shared flags into cfg and loads the site
// configuration file.
func applySessionFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if cfg.OutputRoot, err = f.GetString("dir"); err != nil {
		return err
	}
	if cfg.ConfigFilePath, err = f.GetString("config"); err != nil {
		return err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.MaxBodySize, err = f.GetInt64("max-body-size"); err != nil {
		return err
	}

	if cfg.UseTor, err = f.GetBool("tor"); err != nil {
		return err
	}
	if cfg.TorProxyAddress, err = f.GetString("tor-proxy"); err != nil {
		return err
	}
	if f.Changed("tor-proxy") {
		cfg.UseTor = true
	}
	if cfg.EmbeddedTor, err = f.GetBool("embedded-tor"); err != nil {
		return err
	}
	if cfg.TorStartupTimeout, err = f.GetDuration("tor-timeout"); err != nil {
		return err
	}

	if cfg.Render, err = f.GetBool("render"); err != nil {
		return err
	}
	if cfg.RenderWait, err = f.GetDuration("render-wait"); err != nil {
		return err
	}
	if cfg.MarkdownSnapshot, err = f.GetBool("markdown-snapshot"); err != nil {
		return err
	}
	if cfg.Enhance, err = f.GetBool("enhance"); err != nil {
		return err
	}
	if cfg.AIBaseURL, err = f.GetString("ai-base-url"); err != nil {
		return err
	}
	if cfg.AIModel, err = f.GetString("ai-model"); err != nil {
		return err
	}

	noHistory, err := f.GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return loadSiteConfigs(cfg)
}

// loadSiteConfigs fills cfg.SiteConfigs. A missing file is only an error
// when the user named it with --config.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		sites, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = sites
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting logger used by every component.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return seclog.NewSecureJSONLogger(w, verbose)
	}
	return seclog.NewSecureLogger(w, verbose)
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// routing owns the Tor client of a run and the embedded daemon, if any.
type routing struct {
	client *tor.Client
	daemon *tor.Daemon
	logger *slog.Logger
}

// setupRouting prepares Tor routing as configured. Without --tor or
// --embedded-tor it returns a direct routing with no client.
func setupRouting(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress io.Writer) (*routing, error) {
	r := &routing{logger: logger}

	switch {
	case cfg.EmbeddedTor:
		client, daemon, err := startEmbeddedTor(ctx, cfg, logger, progress)
		if err != nil {
			return nil, err
		}
		r.client = client
		r.daemon = daemon
	case cfg.UseTor:
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if err := client.CheckConnection(ctx).Err(); err != nil {
			return nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				err, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		r.client = client
	}
	return r, nil
}

// clonerOptions returns the options that route a Cloner through Tor.
func (r *routing) clonerOptions() []pipeline.ClonerOption {
	if r.client == nil {
		return nil
	}
	return []pipeline.ClonerOption{pipeline.WithTorClient(r.client)}
}

// Close stops the embedded daemon.
func (r *routing) Close() {
	if r.daemon == nil {
		return
	}
	r.logger.Info("stopping embedded Tor daemon...")
	if err := r.daemon.Stop(); err != nil {
		r.logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// startEmbeddedTor starts a private Tor daemon and verifies its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress io.Writer) (*tor.Client, *tor.Daemon, error) {
	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintf(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := daemon.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started", "socksAddr", daemon.SocksAddr())

	client, err := daemon.Client(cfg.Timeout)
	if err != nil {
		_ = daemon.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckConnection(ctx).Err(); err != nil {
		_ = daemon.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	fmt.Fprintf(progress, "Embedded Tor daemon started (SOCKS proxy %s)\n\n", daemon.SocksAddr())
	return client, daemon, nil
}

// openHistory opens the history database, or returns nil when recording
// is disabled.
func openHistory(cfg *config.Config, logger *slog.Logger) (*database.HistoryDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	logger.Info("history database opened", "path", db.Path())
	return db, nil
}

// newEnhancer returns the OpenAI-compatible enhancer, or nil without an API key.
func newEnhancer(cfg *config.Config, logger *slog.Logger) enhance.Enhancer {
	if cfg.AIAPIKey == "" {
		return nil
	}
	return enhance.NewOpenAIClient(cfg.AIAPIKey,
		enhance.WithBaseURL(cfg.AIBaseURL),
		enhance.WithModel(cfg.AIModel),
		enhance.WithLogger(logger),
	)
}

// newCloner wires a Cloner from the run's collaborators.
func newCloner(cfg *config.Config, logger *slog.Logger, r *routing, history *database.HistoryDB) *pipeline.Cloner {
	opts := []pipeline.ClonerOption{pipeline.WithClonerLogger(logger)}
	opts = append(opts, r.clonerOptions()...)
	if e := newEnhancer(cfg, logger); e != nil {
		opts = append(opts, pipeline.WithEnhancer(e))
	}
	if history != nil {
		opts = append(opts, pipeline.WithHistory(history))
	}
	return pipeline.NewCloner(cfg, opts...)
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}
