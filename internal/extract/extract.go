// Package extract finds email-like strings in rendered pages.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

// AnchorSeparator joins link texts before they are scanned.
const AnchorSeparator = " | "

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Matches like "logo@2x.png" come from retina asset names, not mailboxes.
var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

// Emails returns the unique addresses found on a page in order of first
// appearance. Addresses in the anchor text win; the page body (with scripts
// removed) is only scanned when the anchors yield nothing.
func Emails(pageHTML, anchorText string) []string {
	if found := Scan(anchorText); len(found) > 0 {
		return found
	}
	return Scan(stripScripts(pageHTML))
}

// AnchorText joins the visible texts of links the way Emails expects them.
func AnchorText(links []miner.Link) string {
	texts := make([]string, 0, len(links))
	for _, l := range links {
		if t := strings.TrimSpace(l.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, AnchorSeparator)
}

// Scan returns the deduplicated email-like substrings of text.
func Scan(text string) []string {
	if text == "" {
		return []string{}
	}
	out := []string{}
	seen := make(map[string]struct{})
	for _, match := range emailPattern.FindAllString(text, -1) {
		if !strings.Contains(match, "@") || looksLikeAsset(match) {
			continue
		}
		key := strings.ToLower(match)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, match)
	}
	return out
}

func looksLikeAsset(match string) bool {
	lower := strings.ToLower(match)
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func stripScripts(pageHTML string) string {
	if strings.TrimSpace(pageHTML) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	doc.Find("script").Remove()
	out, err := doc.Html()
	if err != nil {
		return ""
	}
	return out
}
