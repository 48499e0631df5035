// Package browser exposes a headless-browser page fetch as an engine tool.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/harun/loom/pkg/tools"
	"github.com/rs/zerolog"
)

// Config controls the browser process and which URLs it may visit.
type Config struct {
	Headless           bool
	NoSandbox          bool
	PageTimeout        time.Duration
	AllowFileURLs      bool
	AllowLocalhostURLs bool
	AllowedDomains     []string
	BlockedDomains     []string
}

// DefaultConfig returns a locked-down headless configuration.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		PageTimeout: 30 * time.Second,
	}
}

// Fetcher drives one shared Chrome process and renders pages to text.
type Fetcher struct {
	cfg      Config
	logger   zerolog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	mu       sync.Mutex
	started  bool
}

// NewFetcher creates a fetcher. The browser process starts lazily on first
// use.
func NewFetcher(cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	return &Fetcher{
		cfg:    cfg,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

func (f *Fetcher) ensureStarted() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}

	l := launcher.New().Headless(f.cfg.Headless)
	if f.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	f.launcher = l
	f.browser = browser
	f.started = true
	f.logger.Info().Bool("headless", f.cfg.Headless).Msg("browser started")
	return nil
}

// PageText navigates to a URL and returns the page's visible text.
func (f *Fetcher) PageText(ctx context.Context, pageURL string) (string, error) {
	if err := f.ValidateURL(pageURL); err != nil {
		return "", err
	}
	if err := f.ensureStarted(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout)
	defer cancel()

	page, err := f.browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	page = page.Context(ctx)
	defer func() {
		if err := page.Close(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to close page")
		}
	}()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load failed: %w", err)
	}

	text, err := page.Eval(`() => document.body.innerText`)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	f.logger.Debug().Str("url", pageURL).Msg("page fetched")
	return text.Value.String(), nil
}

// Close shuts down the browser process.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil
	}
	f.started = false

	err := f.browser.Close()
	f.launcher.Cleanup()
	return err
}

// Definition describes the page-fetch tool for prompting and validation.
func Definition() tools.Definition {
	return tools.Definition{
		Name:        "browse_page",
		Description: "Fetches a web page in a headless browser and returns its visible text",
		Parameters: []tools.Parameter{
			{Name: "url", Type: "string", Description: "absolute URL of the page to fetch", Required: true},
		},
	}
}

// Bind registers the page-fetch tool with a local environment.
func (f *Fetcher) Bind(env *tools.LocalEnvironment) error {
	return env.Bind(Definition(), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		pageURL, ok := params["url"].(string)
		if !ok || pageURL == "" {
			return nil, fmt.Errorf("url parameter is required")
		}
		return f.PageText(ctx, pageURL)
	})
}
