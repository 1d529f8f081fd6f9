package fetch

import (
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// maxRedirects is the redirect limit of a session.
const maxRedirects = 10

// SessionOption configures NewSession.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	timeout   time.Duration
	userAgent string
	cookie    string
	headers   map[string]string
	host      string
}

// WithTimeout bounds every request made through the session.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) SessionOption {
	return func(c *sessionConfig) {
		c.userAgent = ua
	}
}

// WithCookie adds a raw cookie string ("a=1; b=2") to every request.
func WithCookie(cookie string) SessionOption {
	return func(c *sessionConfig) {
		c.cookie = cookie
	}
}

// WithHeaders sets extra headers on every request.
func WithHeaders(headers map[string]string) SessionOption {
	return func(c *sessionConfig) {
		c.headers = headers
	}
}

// WithSiteHost limits the cookie and extra headers to requests for host.
// Without it they are sent to every host.
func WithSiteHost(host string) SessionOption {
	return func(c *sessionConfig) {
		c.host = host
	}
}

// NewSession returns the client shared by all requests of one clone job.
// base is the underlying transport; nil means a clone of
// http.DefaultTransport, and the Tor client supplies a SOCKS5 transport.
func NewSession(base http.RoundTripper, opts ...SessionOption) *http.Client {
	cfg := &sessionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib guarantees the type
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // only fails with non-nil options

	return &http.Client{
		Transport: &headerTransport{
			base:      base,
			userAgent: cfg.userAgent,
			cookie:    cfg.cookie,
			headers:   cfg.headers,
			host:      cfg.host,
		},
		Timeout: cfg.timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// headerTransport adds the configured headers to each outgoing request,
// redirects included. Cookie and extra headers only go to host when it is set;
// the User-Agent goes everywhere.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
	host      string
}

func (t *headerTransport) sameSite(req *http.Request) bool {
	return t.host == "" || strings.EqualFold(req.URL.Hostname(), t.host)
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	if t.userAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", t.userAgent)
	}
	if !t.sameSite(out) {
		return t.base.RoundTrip(out)
	}
	if t.cookie != "" {
		if existing := out.Header.Get("Cookie"); existing != "" {
			out.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			out.Header.Set("Cookie", t.cookie)
		}
	}
	for k, v := range t.headers {
		out.Header.Set(k, v)
	}

	return t.base.RoundTrip(out)
}
