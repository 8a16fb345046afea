// Package browser owns the Chrome instance the service handlers drive. One
// manager launches (or attaches to) a single browser; each service gets its
// own page, never shared across services.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"sheetdrive/internal/logging"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `json:"debugger_url"`
	Launch              []string `json:"launch"`
	Headless            bool     `json:"headless"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults. Headful by default: the services
// being driven are logged-in chat UIs and manual login needs a window.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Manager owns the browser process and hands out pages.
type Manager struct {
	cfg Config
	log *logging.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
}

// NewManager creates a manager; the browser launches lazily on first use.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg: cfg,
		log: logging.Get(logging.CategoryBrowser),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.log.Warn("stale browser connection, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := m.launch()
		if err != nil {
			return err
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.log.Info("browser connected (headless=%v)", m.cfg.Headless)
	return nil
}

// launch starts Chrome with the configured binary and flags.
func (m *Manager) launch() (string, error) {
	l := launcher.New().Headless(m.cfg.Headless)
	if len(m.cfg.Launch) > 0 {
		l = l.Bin(m.cfg.Launch[0])
		for _, rawFlag := range m.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
	}
	url, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	return url, nil
}

// NewPage opens a page at url with the configured viewport.
func (m *Manager) NewPage(ctx context.Context, url string) (*rod.Page, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page %s: %w", url, err)
	}

	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  m.cfg.ViewportWidth,
			Height: m.cfg.ViewportHeight,
		})
	}

	if err := page.Context(ctx).Timeout(m.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		m.log.Warn("page %s did not settle: %v", url, err)
	}

	return page, nil
}

// IsConnected reports whether the browser is up.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Close shuts the browser down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	m.controlURL = ""
	m.log.Info("browser closed")
	return err
}
