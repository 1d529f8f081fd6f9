package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserFetcher renders the seed page in headless Chrome and returns the
// DOM after scripts ran. A browser is launched per Fetch call and closed
// before it returns, since a clone job loads exactly one page.
type BrowserFetcher struct {
	logger    *slog.Logger
	timeout   time.Duration
	settle    time.Duration
	proxy     string
	userAgent string
	cookie    string
	headers   map[string]string
	binDir    string
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithBrowserLogger sets the logger.
func WithBrowserLogger(logger *slog.Logger) BrowserOption {
	return func(b *BrowserFetcher) {
		b.logger = logger
	}
}

// WithNavigationTimeout bounds navigation and the page load.
func WithNavigationTimeout(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		b.timeout = d
	}
}

// WithSettleTime waits d after the load event before reading the DOM.
func WithSettleTime(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		b.settle = d
	}
}

// WithSOCKSProxy sends the browser's traffic through a SOCKS5 proxy ("host:port").
// Chrome resolves host names through the proxy.
func WithSOCKSProxy(addr string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.proxy = addr
	}
}

// WithBrowserSite applies the site's User-Agent, cookie and extra headers.
func WithBrowserSite(userAgent, cookie string, headers map[string]string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.userAgent = userAgent
		b.cookie = cookie
		b.headers = headers
	}
}

// WithBrowserBinDir stores the downloaded Chromium below dir.
func WithBrowserBinDir(dir string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.binDir = dir
	}
}

// NewBrowserFetcher creates a BrowserFetcher.
func NewBrowserFetcher(opts ...BrowserOption) *BrowserFetcher {
	b := &BrowserFetcher{
		logger:  slog.Default(),
		timeout: 30 * time.Second,
		settle:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fetch loads pageURL in a stealth page and returns its rendered markup.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	l := b.launcher(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	if err := b.prepare(page); err != nil {
		return nil, err
	}

	status := &documentStatus{frame: page.FrameID}
	listener, stopListening := page.WithCancel()
	defer stopListening()
	go listener.EachEvent(status.observe)()

	nav := page.Timeout(b.timeout)
	if err := nav.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := nav.WaitLoad(); err != nil {
		b.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.settle):
	}

	code := status.get()
	if code >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, code)
	}
	if code == 0 {
		code = http.StatusOK
	}

	markup, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: read DOM: %w", err)
	}

	finalURL := pageURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	b.logger.Debug("rendered seed page", "url", finalURL, "bytes", len(markup))
	return &Page{
		URL:         finalURL,
		StatusCode:  code,
		ContentType: "text/html; charset=utf-8",
		Charset:     "utf-8",
		Body:        []byte(markup),
	}, nil
}

func (b *BrowserFetcher) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	if b.proxy != "" {
		l = l.Proxy("socks5://" + b.proxy)
	}
	if b.binDir != "" {
		dl := launcher.NewBrowser()
		dl.RootDir = b.binDir
		dl.Context = ctx
		if path, err := dl.Get(); err == nil {
			l = l.Bin(path)
		} else {
			b.logger.Warn("browser: download failed, using default lookup", "error", err)
		}
	}
	return l
}

func (b *BrowserFetcher) prepare(page *rod.Page) error {
	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			return fmt.Errorf("browser: set user agent: %w", err)
		}
	}

	var dict []string
	for k, v := range b.headers {
		dict = append(dict, k, v)
	}
	if b.cookie != "" {
		dict = append(dict, "Cookie", b.cookie)
	}
	if len(dict) > 0 {
		if _, err := page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("browser: set headers: %w", err)
		}
	}
	return nil
}

// documentStatus records the HTTP status of the last document response
// received by the main frame.
type documentStatus struct {
	frame proto.PageFrameID

	mu   sync.Mutex
	code int
}

func (d *documentStatus) observe(e *proto.NetworkResponseReceived) {
	if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
		return
	}
	if d.frame != "" && e.FrameID != "" && e.FrameID != d.frame {
		return
	}
	d.mu.Lock()
	d.code = e.Response.Status
	d.mu.Unlock()
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code
}
