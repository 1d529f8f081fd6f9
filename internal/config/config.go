package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/webclone/internal/model"
	"github.com/nao1215/webclone/internal/tor"
)

// Default configuration values.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout applies to every request of a clone job, the seed page
	// and each asset alike.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize of 1 clones seed URLs one after another.
	DefaultBatchSize = 1

	// DefaultOutputRoot is the directory holding one folder per cloned site.
	DefaultOutputRoot = "cloned_sites"

	// AppName is the application name used for XDG directory paths.
	AppName = "webclone"

	// DefaultUserAgent is sent when neither the flags nor the site config set one.
	// Some sites refuse requests without a browser-like agent.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// DefaultMaxBodySize limits the bytes read from a single response.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultRenderWait is how long the headless browser waits for the page
	// to settle when --render is set.
	DefaultRenderWait = 2 * time.Second

	// DefaultServerAddress is the listen address of "webclone serve".
	DefaultServerAddress = "127.0.0.1:8000"

	// DefaultAIBaseURL is the OpenAI-compatible API root used for enhancement.
	DefaultAIBaseURL = "https://api.openai.com/v1"

	// DefaultAIModel is the chat model used for enhancement.
	DefaultAIModel = "gpt-4o-mini"

	// EnvAIAPIKey is the preferred environment variable for the enhancement key.
	EnvAIAPIKey = "WEBCLONE_AI_API_KEY"

	// EnvOpenAIAPIKey is consulted when EnvAIAPIKey is unset.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds all configuration options for webclone.
// It is populated from CLI flags and passed down explicitly; nothing reads
// global state after startup.
type Config struct {
	// Targets is the list of seed URLs to clone.
	Targets []string

	// OutputRoot is the directory under which each site folder is created.
	OutputRoot string

	// Timeout bounds every single HTTP request.
	Timeout time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of seed URLs cloned concurrently.
	// Downloads inside one job stay sequential regardless of this value.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .webclone is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport writes the clone results as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the clone results as a Markdown table.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// UseTor routes every request through the SOCKS5 proxy at TorProxyAddress.
	UseTor bool

	// TorProxyAddress is the external Tor SOCKS5 proxy in "host:port" format.
	TorProxyAddress string

	// EmbeddedTor starts a private Tor daemon and routes through it.
	// It takes precedence over TorProxyAddress.
	EmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// DBDir is the directory path for the history database.
	// Defaults to XDG data directory (~/.local/share/webclone on Linux).
	DBDir string

	// SaveToDB records every finished job in the history database.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Zero disables the limit.
	MaxBodySize int64

	// Render loads the seed page in a headless browser so that content
	// produced by JavaScript is part of the clone.
	Render bool

	// RenderWait is the settle time after the page load event when Render is set.
	RenderWait time.Duration

	// MarkdownSnapshot writes index.md next to index.html.
	MarkdownSnapshot bool

	// Enhance runs the AI enhancement step after a successful clone.
	Enhance bool

	// AIAPIKey authenticates enhancement requests.
	AIAPIKey string

	// AIBaseURL is the OpenAI-compatible API root.
	AIBaseURL string

	// AIModel is the chat model name.
	AIModel string

	// ServerAddress is the listen address of the HTTP API.
	ServerAddress string
}

// NewConfig creates a new Config with default values.
// The AI key is read from the environment; every other field is static.
func NewConfig() *Config {
	return &Config{
		OutputRoot:        DefaultOutputRoot,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RenderWait:        DefaultRenderWait,
		AIAPIKey:          APIKeyFromEnv(),
		AIBaseURL:         DefaultAIBaseURL,
		AIModel:           DefaultAIModel,
		ServerAddress:     DefaultServerAddress,
	}
}

// APIKeyFromEnv returns the enhancement key from WEBCLONE_AI_API_KEY,
// falling back to OPENAI_API_KEY.
func APIKeyFromEnv() string {
	if key := os.Getenv(EnvAIAPIKey); key != "" {
		return key
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// XDGDataDir returns the XDG data directory for webclone.
// On Linux: ~/.local/share/webclone
// On macOS: ~/Library/Application Support/webclone
// On Windows: %LOCALAPPDATA%\webclone
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webclone.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for webclone.
// The headless browser binary is downloaded below it.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// PrivacyRouting reports whether requests leave through Tor.
func (c *Config) PrivacyRouting() bool {
	return c.UseTor || c.EmbeddedTor
}

// Validate checks if the configuration is valid for a clone run.
// It returns the first problem found as a sentinel error, wrapped with
// the offending value where one exists.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if err := c.ValidateOptions(); err != nil {
		return err
	}

	folders := make(map[string]string, len(c.Targets))
	for _, target := range c.Targets {
		if err := c.ValidateTarget(target); err != nil {
			return err
		}
		u, _ := model.ParseSeedURL(target)
		folder := model.SiteFolderName(u)
		if prev, ok := folders[folder]; ok {
			return fmt.Errorf("%w: %s and %s", ErrDuplicateSiteFolder, prev, target)
		}
		folders[folder] = target
	}
	return nil
}

// ValidateOptions checks everything except the targets. The HTTP server
// calls it at startup and validates each requested URL separately.
func (c *Config) ValidateOptions() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		return ErrEmptyOutputRoot
	}
	if c.Enhance && c.AIAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// ValidateTarget checks a single seed URL against the routing settings.
func (c *Config) ValidateTarget(target string) error {
	u, err := model.ParseSeedURL(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	if host := u.Hostname(); tor.IsOnionHost(host) {
		if err := tor.ValidateOnionHost(host); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidOnionAddress, host, err)
		}
		if !c.PrivacyRouting() {
			return ErrOnionRequiresTor
		}
	}
	return nil
}
