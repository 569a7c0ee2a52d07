package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

func TestEmailsPrefersAnchorText(t *testing.T) {
	t.Parallel()

	page := `<html><body><p>Write to body@example.com</p><a href="/c">sales@example.com</a></body></html>`
	got := Emails(page, "Home | sales@example.com")
	require.Equal(t, []string{"sales@example.com"}, got)
}

func TestEmailsFallsBackToBodyWithoutScripts(t *testing.T) {
	t.Parallel()

	page := `<html><head><script>var x = "tracker@analytics.io";</script></head>
<body><p>Reach us at info@example.com or INFO@example.com.</p>
<a href="mailto:help@example.com">Email us</a></body></html>`
	got := Emails(page, "Home | Email us")
	require.Equal(t, []string{"info@example.com", "help@example.com"}, got)
}

func TestEmailsEmptyInputs(t *testing.T) {
	t.Parallel()

	require.Empty(t, Emails("", ""))
	require.Empty(t, Emails("<html><body>nothing here</body></html>", "About | Team"))
}

func TestScanSkipsAssetNamesAndDeduplicates(t *testing.T) {
	t.Parallel()

	text := `logo@2x.png a@b.co a@b.co hero@3x.JPG c.d+tag@sub.example.org`
	require.Equal(t, []string{"a@b.co", "c.d+tag@sub.example.org"}, Scan(text))
}

func TestAnchorText(t *testing.T) {
	t.Parallel()

	links := []miner.Link{
		{Href: "https://a.com/", Text: " Home "},
		{Href: "https://a.com/img", Text: ""},
		{Href: "mailto:x@a.com", Text: "x@a.com"},
	}
	require.Equal(t, "Home | x@a.com", AnchorText(links))
}
