package clone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/webclone/internal/model"
)

// Persister downloads a reference set into a site folder.
// Downloads are strictly sequential and share the persister's client, so
// cookies set by one response are sent with the next request.
type Persister struct {
	client      *http.Client
	logger      *slog.Logger
	maxBodySize int64
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithPersisterLogger sets the logger used for per-asset messages.
func WithPersisterLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

// WithMaxBodySize limits the size of each asset. A larger asset is
// recorded as failed and nothing is left on disk. Zero means no limit.
func WithMaxBodySize(size int64) PersisterOption {
	return func(p *Persister) {
		p.maxBodySize = size
	}
}

// NewPersister creates a Persister using client for every download.
func NewPersister(client *http.Client, opts ...PersisterOption) *Persister {
	p := &Persister{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist removes siteFolder and downloads refs into it in order.
//
// Per-asset problems never stop the loop; they are logged and returned as
// skipped or failed records. The error return is reserved for failing to
// clear the site folder and for context cancellation.
func (p *Persister) Persist(ctx context.Context, siteFolder string, refs []string) ([]model.AssetRecord, error) {
	if err := os.RemoveAll(siteFolder); err != nil {
		return nil, fmt.Errorf("failed to remove site folder %s: %w", siteFolder, err)
	}

	records := make([]model.AssetRecord, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		rec := p.persistOne(ctx, siteFolder, ref)
		switch rec.Status {
		case model.AssetSaved:
			p.logger.Debug("saved asset", "url", rec.URL, "path", rec.LocalPath, "bytes", rec.Bytes)
		case model.AssetSkipped:
			p.logger.Debug("skipped asset", "url", rec.URL, "reason", rec.Error)
		case model.AssetFailed:
			p.logger.Warn("failed to download asset", "url", rec.URL, "error", rec.Error)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Persister) persistOne(ctx context.Context, siteFolder, ref string) model.AssetRecord {
	rec := model.AssetRecord{URL: StripQuery(ref)}

	target, local, err := LocalFilePath(siteFolder, rec.URL)
	if err != nil {
		rec.Status = model.AssetSkipped
		rec.Error = err.Error()
		return rec
	}
	rec.LocalPath = local

	n, contentType, err := p.download(ctx, ref, target)
	rec.Bytes = n
	rec.ContentType = contentType
	if err != nil {
		rec.Status = model.AssetFailed
		rec.Error = err.Error()
		return rec
	}
	rec.Status = model.AssetSaved
	return rec
}

// LocalFilePath returns the on-disk target for ref under siteFolder together
// with the slash-separated path relative to it.
func LocalFilePath(siteFolder, ref string) (string, string, error) {
	local, ok := URLToLocalPath(ref, false)
	if !ok {
		return "", "", ErrUnmappableURL
	}
	if strings.HasSuffix(local, "/") || strings.HasSuffix(local, `\`) {
		return "", local, ErrEmptyFileName
	}

	target := filepath.Join(siteFolder, filepath.FromSlash(local))
	rel, err := filepath.Rel(siteFolder, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", local, ErrPathEscapesSite
	}
	return target, filepath.ToSlash(rel), nil
}

func (p *Persister) download(ctx context.Context, ref, target string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, contentType, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return 0, contentType, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(target) //nolint:gosec // target is confined to the site folder
	if err != nil {
		return 0, contentType, fmt.Errorf("failed to create file: %w", err)
	}

	var body io.Reader = resp.Body
	if p.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, p.maxBodySize+1)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(target)
		return n, contentType, fmt.Errorf("failed to write %s: %w", target, err)
	}
	if p.maxBodySize > 0 && n > p.maxBodySize {
		_ = os.Remove(target)
		return 0, contentType, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, p.maxBodySize)
	}
	return n, contentType, nil
}
