package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// Page is a downloaded seed page.
type Page struct {
	// URL is the address the content was finally served from.
	URL string

	StatusCode  int
	ContentType string

	// Charset is the encoding the body was decoded from.
	Charset string

	// Body is the page markup, always UTF-8.
	Body []byte
}

// Fetcher retrieves a seed page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// HTTPFetcher fetches pages with a plain GET through a session.
type HTTPFetcher struct {
	client      *http.Client
	logger      *slog.Logger
	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithLogger sets the fetcher's logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// WithMaxBodySize rejects pages larger than size bytes. Zero means no limit.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// NewHTTPFetcher creates a fetcher using client, normally a Session.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads pageURL and decodes it to UTF-8.
// Statuses of 400 and above are errors, as is a body over the size limit.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, pageURL, resp.StatusCode)
	}

	raw, err := readLimited(resp.Body, f.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	body, name, err := DecodeUTF8(raw, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s as %s: %w", pageURL, name, err)
	}

	f.logger.Debug("fetched seed page",
		"url", resp.Request.URL.String(),
		"status", resp.StatusCode,
		"charset", name,
		"bytes", len(raw))

	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Charset:     name,
		Body:        body,
	}, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// DecodeUTF8 converts an HTML body to UTF-8. The encoding is taken from a
// byte order mark, the Content-Type header or a <meta> declaration, in
// that order, and defaults to windows-1252 like browsers do.
// It returns the decoded body and the detected encoding name.
func DecodeUTF8(body []byte, contentType string) ([]byte, string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == encoding.Nop || name == "utf-8" {
		return bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")), "utf-8", nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, name, err
	}
	return decoded, name, nil
}
