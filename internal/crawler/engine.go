package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/extract"
	"github.com/JakeFAU/contact-miner/internal/metrics"
	"github.com/JakeFAU/contact-miner/internal/miner"
)

const contactKeyword = "contact"

// MaxDepth is the deepest level a crawl may reach.
const MaxDepth = 3

// Config controls crawl depth.
type Config struct {
	MaxDepth int
}

// Engine runs depth-bounded crawls against a page-fetch session.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.MaxDepth < 1 || cfg.MaxDepth > MaxDepth {
		return nil, fmt.Errorf("max depth must be between 1 and %d, got %d", MaxDepth, cfg.MaxDepth)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// MaxDepth reports the configured depth bound.
func (e *Engine) MaxDepth() int {
	return e.cfg.MaxDepth
}

// Crawl returns the email addresses found for website. An empty, non-nil
// slice means the site was searched and nothing was found. Unreachable pages
// are treated as empty; only context cancellation and unusable websites are
// returned as errors.
func (e *Engine) Crawl(ctx context.Context, session miner.Session, website string) ([]string, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return nil, miner.ErrEmptyWebsite
	}
	if strings.Contains(website, "@") {
		return extract.Scan(website), nil
	}
	start := WithScheme(website)
	domain, err := RegistrableDomain(start)
	if err != nil {
		return nil, fmt.Errorf("derive domain: %w", err)
	}
	run := e.newRun(session, domain)
	return run.mine(ctx, start)
}

type crawlRun struct {
	engine  *Engine
	session miner.Session
	domain  string
	history *history
	logger  *zap.Logger
}

func (e *Engine) newRun(session miner.Session, domain string) *crawlRun {
	return &crawlRun{
		engine:  e,
		session: session,
		domain:  domain,
		history: newHistory(),
		logger:  e.logger.With(zap.String("domain", domain)),
	}
}

type page struct {
	links  []miner.Link
	emails []string
}

func (r *crawlRun) mine(ctx context.Context, start string) ([]string, error) {
	landing, err := r.visit(ctx, start, 1)
	if err != nil {
		return nil, err
	}
	if len(landing.emails) > 0 {
		return landing.emails, nil
	}

	if contact, ok := r.contactLink(landing.links); ok {
		p, err := r.visit(ctx, contact, 2)
		if err != nil {
			return nil, err
		}
		if len(p.emails) > 0 {
			return p.emails, nil
		}
	}

	for depth := 2; depth <= r.engine.cfg.MaxDepth; depth++ {
		emails, err := r.sweep(ctx, depth)
		if err != nil {
			return nil, err
		}
		if len(emails) > 0 {
			return emails, nil
		}
	}
	r.logger.Debug("no emails found", zap.Int("pages", r.history.len()))
	return []string{}, nil
}

// sweep visits the frontier for depth in order and stops at the first page
// that yields addresses.
func (r *crawlRun) sweep(ctx context.Context, depth int) ([]string, error) {
	urls := r.history.frontier(depth)
	r.logger.Debug("sweeping level", zap.Int("depth", depth), zap.Int("urls", len(urls)))
	for _, u := range urls {
		if r.history.seen(u) {
			continue
		}
		p, err := r.visit(ctx, u, depth)
		if err != nil {
			return nil, err
		}
		if len(p.emails) > 0 {
			return p.emails, nil
		}
	}
	return nil, nil
}

// contactLink returns the first same-site link whose href mentions "contact".
// Later matches are never tried.
func (r *crawlRun) contactLink(links []miner.Link) (string, bool) {
	for _, l := range links {
		if !containsLower(l.Href, contactKeyword) {
			continue
		}
		target, ok := r.sameSite(l.Href)
		if !ok {
			continue
		}
		if r.history.seen(target) {
			return "", false
		}
		return target, true
	}
	return "", false
}

func (r *crawlRun) sameSite(href string) (string, bool) {
	if !traversable(href) || !containsLower(href, r.domain) {
		return "", false
	}
	normalized, err := NormalizeURL(href)
	if err != nil {
		return "", false
	}
	return normalized, true
}

// visit fetches rawURL once and records it in the history. Fetch and
// extraction failures produce an empty page.
func (r *crawlRun) visit(ctx context.Context, rawURL string, depth int) (page, error) {
	if err := ctx.Err(); err != nil {
		return page{}, fmt.Errorf("crawl canceled: %w", err)
	}
	target, err := NormalizeURL(rawURL)
	if err != nil {
		target = rawURL
	}
	if r.history.seen(target) {
		return page{}, nil
	}
	logger := r.logger.With(zap.String("url", target), zap.Int("depth", depth))
	logger.Debug("visiting page")

	if err := r.session.Navigate(ctx, target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return page{}, fmt.Errorf("crawl canceled: %w", ctxErr)
		}
		metrics.ObservePageFetch("error")
		if !errors.Is(err, miner.ErrFetch) {
			err = fmt.Errorf("%w: %w", miner.ErrFetch, err)
		}
		logger.Debug("page fetch failed; treating as empty", zap.Error(err))
		r.history.record(target, depth, nil)
		return page{}, nil
	}
	metrics.ObservePageFetch("ok")

	html, err := r.session.PageSource(ctx)
	if err != nil {
		logger.Debug("page source unavailable", zap.Error(err))
		html = ""
	}
	links, err := r.session.Links(ctx)
	if err != nil {
		logger.Debug("link query failed", zap.Error(err))
		links = nil
	}

	r.history.record(target, depth, r.subLinks(links))
	return page{
		links:  links,
		emails: extract.Emails(html, extract.AnchorText(links)),
	}, nil
}

func (r *crawlRun) subLinks(links []miner.Link) []string {
	var out []string
	queued := make(map[string]struct{})
	for _, l := range links {
		target, ok := r.sameSite(l.Href)
		if !ok || r.history.seen(target) {
			continue
		}
		if _, dup := queued[target]; dup {
			continue
		}
		queued[target] = struct{}{}
		out = append(out, target)
	}
	return out
}
