// Package headless provides page sessions backed by a headless Chrome browser.
package headless

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

const defaultNavTimeout = 30 * time.Second

// linksScript collects every anchor on the page. a.href is already resolved
// against the document base URL.
const linksScript = `Array.from(document.querySelectorAll('a')).map(a => ({href: a.href || '', text: a.innerText || ''}))`

// Config controls the browser launched for sessions.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides chrome discovery when set.
	ExecPath string
}

// Factory launches one browser process and opens a tab per session.
type Factory struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewFactory creates a session factory backed by chromedp. The browser is
// started lazily by the first session.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	return &Factory{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Close shuts the browser down. Sessions still open become unusable.
func (f *Factory) Close() {
	f.allocCancel()
}

// NewSession opens a new browser tab.
func (f *Factory) NewSession(ctx context.Context) (miner.Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	s := &Session{
		tab:        tabCtx,
		cancel:     tabCancel,
		userAgent:  f.cfg.UserAgent,
		navTimeout: f.cfg.NavigationTimeout,
	}
	// An empty run starts the browser and the tab.
	if err := s.run(ctx, s.timeout()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("start browser tab: %w", err)
	}
	return s, nil
}

// Session is a single browser tab.
type Session struct {
	tab        context.Context
	cancel     context.CancelFunc
	userAgent  string
	navTimeout time.Duration
	closeOnce  sync.Once
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{
		s.setupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := s.run(ctx, s.timeout(), actions...); err != nil {
		return fmt.Errorf("%w: navigate %s: %w", miner.ErrFetch, url, err)
	}
	return nil
}

// PageSource returns the outer HTML of the current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.timeout(), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	return html, nil
}

type anchor struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Links returns every anchor on the current document.
func (s *Session) Links(ctx context.Context) ([]miner.Link, error) {
	var anchors []anchor
	if err := s.run(ctx, s.timeout(), chromedp.Evaluate(linksScript, &anchors)); err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}
	return toLinks(anchors), nil
}

// Close closes the tab. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

func (s *Session) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.userAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(s.userAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *Session) timeout() time.Duration {
	if s.navTimeout > 0 {
		return s.navTimeout
	}
	return defaultNavTimeout
}

func toLinks(anchors []anchor) []miner.Link {
	links := make([]miner.Link, 0, len(anchors))
	for _, a := range anchors {
		href := strings.TrimSpace(a.Href)
		if href == "" {
			continue
		}
		links = append(links, miner.Link{Href: href, Text: strings.TrimSpace(a.Text)})
	}
	return links
}
