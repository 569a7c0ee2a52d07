// Package collyfetcher provides plain HTTP page sessions built on gocolly.
// Pages are not rendered, so links added by scripts are not seen.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Factory creates sessions that share one HTTP transport.
type Factory struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// NewFactory builds a Factory.
func NewFactory(cfg Config) *Factory {
	return &Factory{
		cfg:       cfg,
		transport: newHTTPTransport(),
	}
}

// NewSession returns a new HTTP session. It never fails.
func (f *Factory) NewSession(_ context.Context) (miner.Session, error) {
	return &Session{cfg: f.cfg, transport: f.transport}, nil
}

// Session holds the last page fetched over HTTP.
type Session struct {
	cfg       Config
	transport http.RoundTripper

	mu   sync.Mutex
	page page
}

type page struct {
	html  string
	links []miner.Link
}

// Navigate fetches url and keeps its body and anchors as the current page.
// On failure the current page becomes empty.
func (s *Session) Navigate(ctx context.Context, url string) error {
	var (
		result   page
		fetchErr error
	)
	collector := s.newCollector(ctx)
	configureHooks(collector, &result, &fetchErr)

	err := runCollector(ctx, collector, url, &fetchErr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.page = page{}
		return fmt.Errorf("%w: %s: %w", miner.ErrFetch, url, err)
	}
	s.page = result
	return nil
}

// PageSource returns the body of the last fetched page.
func (s *Session) PageSource(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.html, nil
}

// Links returns the anchors of the last fetched page.
func (s *Session) Links(_ context.Context) ([]miner.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]miner.Link(nil), s.page.links...), nil
}

// Close drops the current page.
func (s *Session) Close() error {
	s.mu.Lock()
	s.page = page{}
	s.mu.Unlock()
	return nil
}

func (s *Session) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.WithTransport(s.transport)
	if s.cfg.UserAgent != "" {
		c.UserAgent = s.cfg.UserAgent
	}
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.SetRequestTimeout(timeout)
	return c
}

func configureHooks(hooks collectorHooks, result *page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		result.html = string(r.Body)
	})

	hooks.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Request.AbsoluteURL(e.Attr("href")))
		if href == "" {
			return
		}
		result.links = append(result.links, miner.Link{
			Href: href,
			Text: strings.TrimSpace(e.Text),
		})
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		// The request carries ctx, so Visit returns promptly.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctxErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
