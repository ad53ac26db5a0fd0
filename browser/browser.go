// Package browser hosts the pipeline on a live Chrome page via Rod. It
// owns the browser lifecycle, mirrors the page into a dom.Document the
// pipeline can mutate, and replays the pipeline's annotations back into
// the page.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domgloss/dom"
)

// Config configures the browser host.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful disables headless mode for debugging.
	Headful bool

	// Stealth applies the stealth page setup to evade bot detection.
	Stealth bool

	// PollInterval is the page mirror frequency. Default: 500ms.
	PollInterval time.Duration

	// NavigateTimeout bounds initial navigation. Default: 30s.
	NavigateTimeout time.Duration

	// ScreenChars maps one viewport height to a character offset in the
	// mirrored document. Must match the pipeline's tuning. Default: 1200.
	ScreenChars int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.ScreenChars <= 0 {
		c.ScreenChars = 1200
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Host couples one Chrome page with its mirrored document.
type Host struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	doc     *dom.Document
	logger  *slog.Logger

	lastHTML   string
	lastURL    string
	lastScroll int
}

// Open launches Chrome (or connects to a remote instance).
func Open(_ context.Context, cfg Config) (*Host, error) {
	cfg.defaults()
	log := cfg.Logger

	var wsURL string
	var lnch *launcher.Launcher
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!cfg.Headful)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		lnch = l
		log.Info("browser: launched local chrome", "headful", cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	return &Host{cfg: cfg, browser: b, lnch: lnch, logger: log}, nil
}

// OpenPage navigates a fresh tab to pageURL and builds the mirrored
// document from its DOM.
func (h *Host) OpenPage(ctx context.Context, pageURL string) error {
	var page *rod.Page
	var err error
	if h.cfg.Stealth {
		page, err = stealth.Page(h.browser)
	} else {
		page, err = h.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, h.cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		h.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	h.page = page

	htmlText, err := h.outerHTML(ctx)
	if err != nil {
		return err
	}
	doc, err := dom.ParseString(htmlText, pageURL)
	if err != nil {
		return fmt.Errorf("browser: parse page: %w", err)
	}
	h.doc = doc
	h.lastHTML = htmlText
	h.lastURL = pageURL
	return nil
}

// Document returns the mirrored document; valid after OpenPage.
func (h *Host) Document() *dom.Document {
	return h.doc
}

// Run mirrors the page until ctx ends: it polls URL, scroll, and DOM
// content into the document, and replays annotation changes back into the
// page. Blocks.
func (h *Host) Run(ctx context.Context) {
	events := h.doc.Subscribe(256)
	defer h.doc.Unsubscribe(events)

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-events:
			// Only the pipeline's own writes need replaying; everything
			// else originated in the page.
			if ev.Annotation {
				dirty = true
			}

		case <-ticker.C:
			if dirty {
				if err := h.syncAnnotations(ctx); err != nil {
					h.logger.Warn("browser: annotation sync failed", "error", err)
				} else {
					dirty = false
				}
			}
			// While annotations wait to be replayed, a content re-mirror
			// would drop them from the document; hold off until synced.
			h.pollPage(ctx, !dirty)
		}
	}
}

// pollPage reads URL, scroll offset, and DOM from the page and feeds the
// differences into the mirrored document. remirror gates whole-content
// replacement.
func (h *Host) pollPage(ctx context.Context, remirror bool) {
	info, err := h.page.Context(ctx).Info()
	if err != nil {
		h.logger.Warn("browser: page info failed", "error", err)
		return
	}
	if info.URL != h.lastURL {
		h.logger.Info("browser: navigation observed", "url", info.URL)
		htmlText, root, err := h.snapshot(ctx)
		if err != nil {
			h.logger.Warn("browser: snapshot failed", "error", err)
			return
		}
		h.doc.Replace(root)
		h.doc.SetURL(info.URL)
		h.lastURL = info.URL
		h.lastHTML = htmlText
		return
	}

	if off, err := h.scrollOffset(ctx); err == nil && off != h.lastScroll {
		h.doc.SetScroll(off)
		h.lastScroll = off
	}

	if !remirror {
		return
	}
	htmlText, root, err := h.snapshot(ctx)
	if err != nil {
		h.logger.Warn("browser: snapshot failed", "error", err)
		return
	}
	if htmlText == h.lastHTML {
		return
	}
	h.lastHTML = htmlText
	h.doc.Replace(root)
	// Synthetic mutation event so the change watcher re-scans.
	h.doc.Notify(dom.Event{Op: dom.OpInsert, Tag: "p", At: time.Now()})
}

// snapshot serialises and parses the live DOM.
func (h *Host) snapshot(ctx context.Context) (string, *html.Node, error) {
	htmlText, err := h.outerHTML(ctx)
	if err != nil {
		return "", nil, err
	}
	root, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return "", nil, fmt.Errorf("browser: parse snapshot: %w", err)
	}
	return htmlText, root, nil
}

func (h *Host) outerHTML(ctx context.Context) (string, error) {
	res, err := h.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: snapshot: %w", err)
	}
	return res.Value.Str(), nil
}

// scrollOffset converts the page's pixel scroll position into the
// character-offset model the pipeline schedules with.
func (h *Host) scrollOffset(ctx context.Context) (int, error) {
	res, err := h.page.Context(ctx).Eval(`() => window.scrollY / Math.max(window.innerHeight, 1)`)
	if err != nil {
		return 0, err
	}
	return ScreensToChars(res.Value.Num(), h.cfg.ScreenChars), nil
}

// ScreensToChars maps a scroll position in screens to a character offset.
func ScreensToChars(screens float64, screenChars int) int {
	if screens < 0 {
		return 0
	}
	return int(screens * float64(screenChars))
}

// Close shuts the page and the browser down.
func (h *Host) Close() {
	if h.page != nil {
		h.page.Close()
	}
	if h.browser != nil {
		h.browser.Close()
	}
	if h.lnch != nil {
		h.lnch.Cleanup()
	}
}
