package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/webclone/internal/clone"
	"github.com/nao1215/webclone/internal/enhance"
	"github.com/nao1215/webclone/internal/fetch"
	"github.com/nao1215/webclone/internal/model"
)

// Step names as recorded in CloneJob.Steps and in error texts.
const (
	StepFetch    = "fetch"
	StepExtract  = "extract"
	StepPersist  = "persist"
	StepWrite    = "write"
	StepMarkdown = "markdown"
	StepEnhance  = "enhance"
)

// StepOption configures any of the clone steps.
type StepOption func(*stepConfig)

type stepConfig struct {
	logger *slog.Logger
}

// WithStepLogger sets the logger of a step.
func WithStepLogger(logger *slog.Logger) StepOption {
	return func(c *stepConfig) {
		c.logger = logger
	}
}

func newStepConfig(opts []StepOption) stepConfig {
	c := stepConfig{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// FetchStep downloads and parses the seed page.
type FetchStep struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

// NewFetchStep creates the fetch step.
func NewFetchStep(fetcher fetch.Fetcher, opts ...StepOption) *FetchStep {
	c := newStepConfig(opts)
	return &FetchStep{fetcher: fetcher, logger: c.logger}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return StepFetch }

// Critical reports that nothing can be cloned without the seed page.
func (s *FetchStep) Critical() bool { return true }

// Do fetches the seed page into job.Document. Relative references later
// resolve against the URL the page was finally served from.
func (s *FetchStep) Do(ctx context.Context, job *model.CloneJob) error {
	job.SetState(model.StateFetching)

	page, err := s.fetcher.Fetch(ctx, job.SeedURL)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", job.SeedURL, err)
	}

	doc, err := clone.ParseDocument(bytes.NewReader(page.Body))
	if err != nil {
		return err
	}
	clone.NormalizeCharset(doc)

	if page.URL != "" {
		if final, err := url.Parse(page.URL); err == nil && final.Host != "" {
			job.BaseURL = final
		}
	}
	job.Document = doc

	s.logger.Debug("fetched seed page",
		"url", job.SeedURL,
		"final_url", page.URL,
		"status", page.StatusCode,
		"charset", page.Charset,
		"bytes", len(page.Body),
	)
	return nil
}

// ExtractStep collects references and rewrites them in the document.
type ExtractStep struct {
	extractors []clone.Extractor
	logger     *slog.Logger
}

// NewExtractStep creates the extract step. No extractors means the default set.
func NewExtractStep(extractors []clone.Extractor, opts ...StepOption) *ExtractStep {
	c := newStepConfig(opts)
	if len(extractors) == 0 {
		extractors = clone.DefaultExtractors()
	}
	return &ExtractStep{extractors: extractors, logger: c.logger}
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return StepExtract }

// Critical reports that persisting needs the reference set.
func (s *ExtractStep) Critical() bool { return true }

// Do fills job.References and job.CategoryRefs.
func (s *ExtractStep) Do(_ context.Context, job *model.CloneJob) error {
	job.SetState(model.StateExtracting)
	if job.Document == nil {
		return clone.ErrNoDocument
	}

	ex := clone.ExtractAll(job.Document, job.BaseURL, s.extractors, s.logger)
	job.CategoryRefs = ex.ByCategory
	job.References = ex.Refs.Items()

	s.logger.Info("extracted references",
		"url", job.SeedURL,
		"references", len(job.References),
	)
	return nil
}

// PersistStep downloads the reference set into the site folder.
type PersistStep struct {
	persister *clone.Persister
}

// NewPersistStep creates the persist step.
func NewPersistStep(persister *clone.Persister) *PersistStep {
	return &PersistStep{persister: persister}
}

// Name returns the step name.
func (s *PersistStep) Name() string { return StepPersist }

// Do records one AssetRecord per reference. Single failed downloads are
// part of the records, not an error of the step.
func (s *PersistStep) Do(ctx context.Context, job *model.CloneJob) error {
	job.SetState(model.StatePersisting)

	records, err := s.persister.Persist(ctx, job.OutputFolder, job.References)
	for _, rec := range records {
		job.AddAsset(rec)
	}
	return err
}

// WriteStep writes the rewritten document as index.html.
type WriteStep struct {
	logger *slog.Logger
}

// NewWriteStep creates the write step.
func NewWriteStep(opts ...StepOption) *WriteStep {
	c := newStepConfig(opts)
	return &WriteStep{logger: c.logger}
}

// Name returns the step name.
func (s *WriteStep) Name() string { return StepWrite }

// Do renders job.Document into the site folder.
func (s *WriteStep) Do(_ context.Context, job *model.CloneJob) error {
	job.SetState(model.StateWriting)

	path, err := clone.WriteDocument(job.Document, job.OutputFolder)
	if err != nil {
		return err
	}
	job.DocumentWritten = true
	s.logger.Info("saved document", "path", path)
	return nil
}

// MarkdownStep writes index.md next to index.html.
// It never fails the job; problems are logged.
type MarkdownStep struct {
	converter *clone.MarkdownConverter
	logger    *slog.Logger
}

// NewMarkdownStep creates the markdown step.
func NewMarkdownStep(converter *clone.MarkdownConverter, opts ...StepOption) *MarkdownStep {
	c := newStepConfig(opts)
	return &MarkdownStep{converter: converter, logger: c.logger}
}

// Name returns the step name.
func (s *MarkdownStep) Name() string { return StepMarkdown }

// Do converts the document when the job asked for it and index.html exists.
func (s *MarkdownStep) Do(_ context.Context, job *model.CloneJob) error {
	if !job.MarkdownRequested || !job.DocumentWritten {
		return nil
	}

	path, err := s.converter.WriteMarkdown(job.Document, job.OutputFolder)
	if err != nil {
		s.logger.Warn("failed to write markdown snapshot",
			"url", job.SeedURL,
			"error", err,
		)
		return nil
	}
	job.MarkdownWritten = true
	s.logger.Info("saved markdown snapshot", "path", path)
	return nil
}

// EnhanceStep passes a successful clone to an Enhancer and writes its output.
// A failing or missing enhancer leaves the plain clone and the job successful.
type EnhanceStep struct {
	enhancer enhance.Enhancer
	logger   *slog.Logger
}

// NewEnhanceStep creates the enhance step. enhancer may be nil, in which
// case the step only logs that enhancement is unavailable.
func NewEnhanceStep(enhancer enhance.Enhancer, opts ...StepOption) *EnhanceStep {
	c := newStepConfig(opts)
	return &EnhanceStep{enhancer: enhancer, logger: c.logger}
}

// Name returns the step name.
func (s *EnhanceStep) Name() string { return StepEnhance }

// Do runs the enhancer on a job that finished writing without errors.
func (s *EnhanceStep) Do(ctx context.Context, job *model.CloneJob) error {
	if !job.EnhanceRequested || job.HasErrors() || !job.DocumentWritten {
		return nil
	}
	if s.enhancer == nil {
		s.logger.Warn("enhancement requested but no enhancer is configured", "url", job.SeedURL)
		return nil
	}
	job.SetState(model.StateEnhancing)

	in, err := EnhanceInput(job)
	if err != nil {
		s.logger.Warn("failed to prepare enhancement", "url", job.SeedURL, "error", err)
		return nil
	}

	out, err := s.enhancer.Enhance(ctx, in)
	if err != nil {
		s.logger.Warn("enhancement failed, keeping original clone",
			"url", job.SeedURL,
			"error", err,
		)
		return nil
	}

	paths, err := enhance.WriteOutput(job.OutputFolder, out)
	if err != nil {
		s.logger.Warn("failed to write enhanced output", "url", job.SeedURL, "error", err)
		return nil
	}
	job.Enhanced = true
	s.logger.Info("saved enhanced output", "paths", paths)
	return nil
}

// EnhanceInput builds the enhancer input from the rewritten document and
// the first stylesheet that was saved.
func EnhanceInput(job *model.CloneJob) (enhance.Input, error) {
	html, err := clone.RenderDocument(job.Document)
	if err != nil {
		return enhance.Input{}, err
	}

	in := enhance.Input{URL: job.SeedURL, HTML: html}
	if css := firstStylesheet(job); css != "" {
		data, err := os.ReadFile(filepath.Join(job.OutputFolder, filepath.FromSlash(css))) //nolint:gosec // path comes from LocalFilePath
		if err != nil {
			return enhance.Input{}, fmt.Errorf("failed to read stylesheet: %w", err)
		}
		in.CSS = string(data)
	}
	return in, nil
}

// firstStylesheet returns the local path of the first saved CSS asset.
func firstStylesheet(job *model.CloneJob) string {
	for _, a := range job.SavedAssets() {
		if strings.HasSuffix(strings.ToLower(a.LocalPath), ".css") ||
			strings.Contains(strings.ToLower(a.ContentType), "text/css") {
			return a.LocalPath
		}
	}
	return ""
}
