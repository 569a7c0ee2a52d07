package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

type fakePage struct {
	html  string
	links []miner.Link
	err   error
}

type fakeSession struct {
	pages       map[string]fakePage
	current     fakePage
	navigations []string
}

func newFakeSession(pages map[string]fakePage) *fakeSession {
	return &fakeSession{pages: pages}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigations = append(s.navigations, url)
	p, ok := s.pages[url]
	if !ok {
		s.current = fakePage{}
		return fmt.Errorf("%w: no route for %s", miner.ErrFetch, url)
	}
	if p.err != nil {
		s.current = fakePage{}
		return p.err
	}
	s.current = p
	return nil
}

func (s *fakeSession) PageSource(context.Context) (string, error) {
	return s.current.html, nil
}

func (s *fakeSession) Links(context.Context) ([]miner.Link, error) {
	return s.current.links, nil
}

func (s *fakeSession) Close() error { return nil }

func link(href, text string) miner.Link {
	return miner.Link{Href: href, Text: text}
}

func newTestEngine(t *testing.T, depth int) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{MaxDepth: depth}, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func deepSite() map[string]fakePage {
	return map[string]fakePage{
		"http://deep.com/": {
			html: "<html><body>welcome</body></html>",
			links: []miner.Link{
				link("http://deep.com/about", "About"),
				link("https://other.org/partners", "Partners"),
			},
		},
		"http://deep.com/about": {
			html: "<html><body>about us</body></html>",
			links: []miner.Link{
				link("http://deep.com/team", "Team"),
				link("http://deep.com/", "Home"),
			},
		},
		"http://deep.com/team": {
			html: "<html><body><p>people@deep.com</p></body></html>",
		},
	}
}

func TestNewEngineRejectsDepthOutOfRange(t *testing.T) {
	t.Parallel()

	for _, depth := range []int{-1, 0, MaxDepth + 1, 10} {
		_, err := NewEngine(Config{MaxDepth: depth}, nil)
		require.Error(t, err, "depth %d", depth)
	}
	for depth := 1; depth <= MaxDepth; depth++ {
		_, err := NewEngine(Config{MaxDepth: depth}, nil)
		require.NoError(t, err, "depth %d", depth)
	}
}

func TestCrawlHostStartingWithHTTP(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{
		"http://httpbin.org/": {html: "<p>ops@httpbin.org</p>"},
	})

	emails, err := newTestEngine(t, 2).Crawl(context.Background(), session, "httpbin.org")
	require.NoError(t, err)
	require.Equal(t, []string{"ops@httpbin.org"}, emails)
	require.Equal(t, []string{"http://httpbin.org/"}, session.navigations)
}

func TestCrawlLandingPageEarlyExit(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{
		"http://shop.com/": {
			html: "<p>body@shop.com</p>",
			links: []miner.Link{
				link("mailto:hello@shop.com", "hello@shop.com"),
				link("http://shop.com/contact", "Contact"),
			},
		},
	})

	emails, err := newTestEngine(t, 3).Crawl(context.Background(), session, "shop.com")
	require.NoError(t, err)
	require.Equal(t, []string{"hello@shop.com"}, emails)
	require.Equal(t, []string{"http://shop.com/"}, session.navigations)
}

func TestCrawlDepthBound(t *testing.T) {
	t.Parallel()

	shallow := newFakeSession(deepSite())
	emails, err := newTestEngine(t, 2).Crawl(context.Background(), shallow, "deep.com")
	require.NoError(t, err)
	require.NotNil(t, emails)
	require.Empty(t, emails)
	require.Equal(t, []string{"http://deep.com/", "http://deep.com/about"}, shallow.navigations)

	deep := newFakeSession(deepSite())
	emails, err = newTestEngine(t, 3).Crawl(context.Background(), deep, "deep.com")
	require.NoError(t, err)
	require.Equal(t, []string{"people@deep.com"}, emails)
	require.Equal(t, []string{
		"http://deep.com/",
		"http://deep.com/about",
		"http://deep.com/team",
	}, deep.navigations)
}

func TestCrawlContactShortcut(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{
		"https://shop.com/": {
			links: []miner.Link{
				link("https://facebook.com/contact", "Facebook"),
				link("https://shop.com/about-us", "About"),
				link("https://shop.com/Contact-Us#form", "Contact"),
				link("https://shop.com/contact-sales", "Sales"),
			},
		},
		"https://shop.com/Contact-Us": {
			html: `<a href="mailto:desk@shop.com">Write</a>`,
		},
	})

	emails, err := newTestEngine(t, 1).Crawl(context.Background(), session, "https://shop.com")
	require.NoError(t, err)
	require.Equal(t, []string{"desk@shop.com"}, emails)
	require.Equal(t, []string{"https://shop.com/", "https://shop.com/Contact-Us"}, session.navigations)
}

func TestCrawlContactShortcutOnlyTriesFirstMatch(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{
		"http://shop.com/": {
			links: []miner.Link{
				link("http://shop.com/contact", "Contact"),
				link("http://shop.com/contact-sales", "Sales"),
			},
		},
		"http://shop.com/contact":       {html: "form only"},
		"http://shop.com/contact-sales": {html: "sales@shop.com"},
	})

	emails, err := newTestEngine(t, 1).Crawl(context.Background(), session, "shop.com")
	require.NoError(t, err)
	require.Empty(t, emails)
	require.Equal(t, []string{"http://shop.com/", "http://shop.com/contact"}, session.navigations)
}

func TestCrawlNeverFetchesURLTwice(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{
		"http://mesh.com/": {links: []miner.Link{
			link("http://mesh.com/a", "A"),
			link("http://mesh.com/b", "B"),
			link("http://mesh.com/c", "C"),
			link("http://mesh.com/a#top", "A again"),
		}},
		"http://mesh.com/a": {links: []miner.Link{
			link("http://mesh.com/b", "B"),
			link("http://mesh.com/c", "C"),
			link("http://mesh.com/", "Home"),
		}},
		"http://mesh.com/b": {links: []miner.Link{
			link("http://mesh.com/a", "A"),
			link("http://MESH.com:80/c", "C"),
		}},
		"http://mesh.com/c": {links: []miner.Link{
			link("http://mesh.com/a", "A"),
			link("http://mesh.com/d", "D"),
		}},
		"http://mesh.com/d": {links: []miner.Link{
			link("http://mesh.com/", "Home"),
			link("http://mesh.com/b", "B"),
		}},
	})

	engine := newTestEngine(t, 3)
	run := engine.newRun(session, "mesh.com")
	emails, err := run.mine(context.Background(), "http://mesh.com")
	require.NoError(t, err)
	require.Empty(t, emails)

	seen := make(map[string]int)
	for _, u := range session.navigations {
		seen[u]++
	}
	for u, n := range seen {
		require.Equalf(t, 1, n, "url %s fetched %d times", u, n)
	}
	require.Len(t, session.navigations, 5)
	require.Equal(t, 5, run.history.len())
}

func TestCrawlFetchFailureDegradesToEmptyPage(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{
		"http://flaky.com/": {links: []miner.Link{
			link("http://flaky.com/broken", "Broken"),
			link("http://flaky.com/ok", "OK"),
		}},
		"http://flaky.com/broken": {err: errors.New("net::ERR_CONNECTION_RESET")},
		"http://flaky.com/ok":     {html: "<p>ops@flaky.com</p>"},
	})

	emails, err := newTestEngine(t, 2).Crawl(context.Background(), session, "flaky.com")
	require.NoError(t, err)
	require.Equal(t, []string{"ops@flaky.com"}, emails)
}

func TestCrawlUnreachableLandingPage(t *testing.T) {
	t.Parallel()

	session := newFakeSession(map[string]fakePage{})
	emails, err := newTestEngine(t, 3).Crawl(context.Background(), session, "gone.com")
	require.NoError(t, err)
	require.Empty(t, emails)
	require.Len(t, session.navigations, 1)
}

func TestCrawlWebsiteHoldingAddress(t *testing.T) {
	t.Parallel()

	session := newFakeSession(nil)
	emails, err := newTestEngine(t, 2).Crawl(context.Background(), session, "owner@pasted.com")
	require.NoError(t, err)
	require.Equal(t, []string{"owner@pasted.com"}, emails)
	require.Empty(t, session.navigations)
}

func TestCrawlEmptyWebsite(t *testing.T) {
	t.Parallel()

	_, err := newTestEngine(t, 2).Crawl(context.Background(), newFakeSession(nil), "  ")
	require.ErrorIs(t, err, miner.ErrEmptyWebsite)
}

func TestCrawlCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := newFakeSession(deepSite())
	_, err := newTestEngine(t, 2).Crawl(ctx, session, "deep.com")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, session.navigations)
}
