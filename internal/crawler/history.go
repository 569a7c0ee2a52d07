package crawler

// pageVisit is what the crawl remembers about one fetched page.
type pageVisit struct {
	depth int
	links []string
}

// history records every page scheduled during one crawl. A URL is inserted at
// most once; insertion order is kept so sweeps are deterministic.
type history struct {
	order []string
	pages map[string]pageVisit
}

func newHistory() *history {
	return &history{pages: make(map[string]pageVisit)}
}

func (h *history) seen(url string) bool {
	_, ok := h.pages[url]
	return ok
}

func (h *history) record(url string, depth int, links []string) bool {
	if h.seen(url) {
		return false
	}
	h.pages[url] = pageVisit{depth: depth, links: links}
	h.order = append(h.order, url)
	return true
}

// frontier returns the unvisited links found on pages fetched at depth-1,
// i.e. the pages to fetch at depth.
func (h *history) frontier(depth int) []string {
	var out []string
	queued := make(map[string]struct{})
	for _, url := range h.order {
		visit := h.pages[url]
		if visit.depth != depth-1 {
			continue
		}
		for _, link := range visit.links {
			if h.seen(link) {
				continue
			}
			if _, ok := queued[link]; ok {
				continue
			}
			queued[link] = struct{}{}
			out = append(out, link)
		}
	}
	return out
}

func (h *history) len() int {
	return len(h.order)
}
