package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/nao1215/webclone/internal/clone"
	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/enhance"
	"github.com/nao1215/webclone/internal/fetch"
	"github.com/nao1215/webclone/internal/model"
	"github.com/nao1215/webclone/internal/tor"
)

// JobOptions selects the optional steps of one clone.
type JobOptions struct {
	// Enhance runs the enhancer after a successful clone.
	Enhance bool

	// Markdown writes index.md next to index.html.
	Markdown bool
}

// HistoryRecorder stores finished jobs.
type HistoryRecorder interface {
	SaveJob(ctx context.Context, job *model.CloneJob) error
}

// PageFetcherFunc builds the seed page fetcher of one job from its session
// and the merged site settings.
type PageFetcherFunc func(session *http.Client, site config.SiteConfig) fetch.Fetcher

// Cloner runs clone jobs. It is safe for concurrent use; every call to
// Clone gets its own session, pipeline and job.
type Cloner struct {
	cfg         *config.Config
	logger      *slog.Logger
	transport   http.RoundTripper
	socksAddr   string
	enhancer    enhance.Enhancer
	history     HistoryRecorder
	pageFetcher PageFetcherFunc
}

// ClonerOption configures a Cloner.
type ClonerOption func(*Cloner)

// WithClonerLogger sets the logger passed to every step.
func WithClonerLogger(logger *slog.Logger) ClonerOption {
	return func(c *Cloner) {
		c.logger = logger
	}
}

// WithTransport sets the base transport of every job session.
func WithTransport(rt http.RoundTripper) ClonerOption {
	return func(c *Cloner) {
		c.transport = rt
	}
}

// WithTorClient routes sessions and the headless browser through client.
func WithTorClient(client *tor.Client) ClonerOption {
	return func(c *Cloner) {
		c.transport = client.Transport()
		c.socksAddr = client.ProxyAddress()
	}
}

// WithEnhancer sets the enhancer used by jobs that request enhancement.
func WithEnhancer(e enhance.Enhancer) ClonerOption {
	return func(c *Cloner) {
		c.enhancer = e
	}
}

// WithHistory records every finished job.
func WithHistory(h HistoryRecorder) ClonerOption {
	return func(c *Cloner) {
		c.history = h
	}
}

// WithPageFetcher replaces the seed page fetcher chosen from the config.
func WithPageFetcher(f PageFetcherFunc) ClonerOption {
	return func(c *Cloner) {
		c.pageFetcher = f
	}
}

// NewCloner creates a Cloner for cfg. cfg must not change afterwards.
func NewCloner(cfg *config.Config, opts ...ClonerOption) *Cloner {
	c := &Cloner{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Clone copies seedURL below the configured output root.
//
// The returned job is always finished. Invalid seed URLs, .onion hosts
// without privacy routing, fetch failures and panics inside steps all end
// up as a failed job rather than an error.
func (c *Cloner) Clone(ctx context.Context, seedURL string, opts JobOptions) *model.CloneJob {
	if err := c.cfg.ValidateTarget(seedURL); err != nil {
		c.logger.Warn("rejected seed URL", "url", seedURL, "error", err)
		return model.NewFailedJob(seedURL, c.cfg.OutputRoot, err)
	}
	job, err := model.NewCloneJob(seedURL, c.cfg.OutputRoot)
	if err != nil {
		return model.NewFailedJob(seedURL, c.cfg.OutputRoot, err)
	}
	job.EnhanceRequested = opts.Enhance
	job.MarkdownRequested = opts.Markdown

	if err := c.NewPipeline(job).Execute(ctx, job); err != nil {
		c.logger.Warn("clone failed", "url", seedURL, "error", err)
	}
	c.record(ctx, job)
	return job
}

// NewPipeline assembles the steps for job. The session carries the site
// settings for the job's host and is shared by the fetch and persist steps.
func (c *Cloner) NewPipeline(job *model.CloneJob) *Pipeline {
	site := c.cfg.SiteConfigs.GetSiteConfig(job.SiteFolder)
	if site.UserAgent == "" {
		site.UserAgent = c.cfg.UserAgent
	}

	session := fetch.NewSession(c.transport,
		fetch.WithTimeout(c.cfg.Timeout),
		fetch.WithUserAgent(site.UserAgent),
		fetch.WithCookie(site.Cookie),
		fetch.WithHeaders(site.Headers),
		fetch.WithSiteHost(job.SiteFolder),
	)
	persister := clone.NewPersister(session,
		clone.WithPersisterLogger(c.logger),
		clone.WithMaxBodySize(c.cfg.MaxBodySize),
	)
	logOpt := WithStepLogger(c.logger)

	p := New(WithLogger(c.logger), WithContinueOnError(true))
	p.AddSteps(
		NewFetchStep(c.fetcherFor(session, site), logOpt),
		NewExtractStep(nil, logOpt),
		NewPersistStep(persister),
		NewWriteStep(logOpt),
	)
	if job.MarkdownRequested {
		p.AddStep(NewMarkdownStep(clone.NewMarkdownConverter(), logOpt))
	}
	if job.EnhanceRequested {
		p.AddStep(NewEnhanceStep(c.enhancer, logOpt))
	}
	return p
}

func (c *Cloner) fetcherFor(session *http.Client, site config.SiteConfig) fetch.Fetcher {
	if c.pageFetcher != nil {
		return c.pageFetcher(session, site)
	}
	if !c.cfg.Render {
		return fetch.NewHTTPFetcher(session,
			fetch.WithLogger(c.logger),
			fetch.WithMaxBodySize(c.cfg.MaxBodySize),
		)
	}

	opts := []fetch.BrowserOption{
		fetch.WithBrowserLogger(c.logger),
		fetch.WithNavigationTimeout(c.cfg.Timeout),
		fetch.WithSettleTime(c.cfg.RenderWait),
		fetch.WithBrowserSite(site.UserAgent, site.Cookie, site.Headers),
		fetch.WithBrowserBinDir(filepath.Join(config.XDGCacheDir(), "browser")),
	}
	if c.socksAddr != "" {
		opts = append(opts, fetch.WithSOCKSProxy(c.socksAddr))
	}
	return fetch.NewBrowserFetcher(opts...)
}

// record saves job to the history store. It survives cancellation of ctx
// so that interrupted runs are recorded too.
func (c *Cloner) record(ctx context.Context, job *model.CloneJob) {
	if c.history == nil {
		return
	}
	if err := c.history.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		c.logger.Warn("failed to record clone in history",
			"url", job.SeedURL,
			"run_id", job.RunID,
			"error", err,
		)
	}
}
