package scrape

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/openers/internal/model"
)

const (
	defaultMaxPages    = 4
	defaultConcurrency = 4
	maxSiteText        = 15000
)

// linkPriority orders the subpages worth fetching. Lower is fetched first.
var linkPriority = map[model.PageType]int{
	model.PageTypeProjects:     0,
	model.PageTypeServices:     1,
	model.PageTypeAbout:        2,
	model.PageTypeTestimonials: 3,
	model.PageTypeCareers:      4,
}

var (
	anchorSel = cascadia.MustCompile("a[href]")
	mdHrefRe  = regexp.MustCompile(`\]\(([^)\s]+)`)
)

// SiteScraper fetches a company's homepage plus a few high-signal subpages.
type SiteScraper struct {
	chain       *Chain
	maxPages    int
	concurrency int
	timeout     time.Duration
}

// NewSiteScraper creates a SiteScraper. maxPages bounds the subpages fetched
// after the homepage; non-positive values use defaults.
func NewSiteScraper(chain *Chain, maxPages, concurrency int) *SiteScraper {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &SiteScraper{chain: chain, maxPages: maxPages, concurrency: concurrency}
}

// WithTimeout bounds each ScrapeSite call to d. Zero disables the bound.
func (s *SiteScraper) WithTimeout(d time.Duration) *SiteScraper {
	s.timeout = d
	return s
}

// ScrapeSite fetches siteURL and its subpages and merges them into one Site.
// Only a homepage failure is an error; failed subpages are skipped.
func (s *SiteScraper) ScrapeSite(ctx context.Context, siteURL string) (*model.Site, error) {
	base, err := normalizeSiteURL(siteURL)
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	home, err := s.chain.Scrape(ctx, base.String())
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: homepage %s", base.String())
	}
	if home.Page.Type == "" {
		home.Page.Type = model.PageTypeHomepage
	}

	links := s.subpageLinks(home.Page, base)
	pages := []model.Page{home.Page}
	if len(links) > 0 {
		pages = append(pages, s.chain.ScrapeAll(ctx, links, s.concurrency)...)
	}

	site := &model.Site{
		URL:    base.String(),
		Title:  home.Page.Title,
		Source: home.Source,
	}

	seen := make(map[string]bool)
	var text strings.Builder
	for _, p := range pages {
		if p.Type == "" {
			p.Type = model.ClassifyPath(p.URL)
		}
		for _, el := range Elements(p) {
			key := strings.ToLower(el.Text)
			if seen[key] {
				continue
			}
			seen[key] = true
			site.Elements = append(site.Elements, el)
		}
		if md := strings.TrimSpace(p.Markdown); md != "" {
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(md)
		}
	}
	site.Text = truncateRunes(text.String(), maxSiteText)

	zap.L().Debug("scrape: site scraped",
		zap.String("url", site.URL),
		zap.Int("pages", len(pages)),
		zap.Int("elements", len(site.Elements)),
	)
	return site, nil
}

// subpageLinks picks same-host links to high-signal pages, one per page type,
// in priority order.
func (s *SiteScraper) subpageLinks(home model.Page, base *url.URL) []string {
	type candidate struct {
		url      string
		priority int
	}
	byType := make(map[model.PageType]candidate)

	for _, href := range pageLinks(home) {
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if !sameHost(u.Hostname(), base.Hostname()) {
			continue
		}
		u.Fragment = ""
		u.RawQuery = ""
		abs := u.String()
		if s.chain.PathMatcher.IsExcluded(abs) {
			continue
		}
		pt := model.ClassifyPath(abs)
		prio, ok := linkPriority[pt]
		if !ok {
			continue
		}
		if _, dup := byType[pt]; dup {
			continue
		}
		byType[pt] = candidate{url: abs, priority: prio}
	}

	cands := make([]candidate, 0, len(byType))
	for _, c := range byType {
		cands = append(cands, c)
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].priority < cands[j].priority })

	out := make([]string, 0, s.maxPages)
	for _, c := range cands {
		if len(out) == s.maxPages {
			break
		}
		out = append(out, c.url)
	}
	return out
}

// pageLinks returns raw hrefs from a page's HTML, or markdown links when
// there is no HTML.
func pageLinks(p model.Page) []string {
	var out []string
	if strings.TrimSpace(p.HTML) != "" {
		doc, err := html.Parse(strings.NewReader(p.HTML))
		if err == nil {
			for _, n := range anchorSel.MatchAll(doc) {
				for _, a := range n.Attr {
					if a.Key == "href" {
						out = append(out, strings.TrimSpace(a.Val))
					}
				}
			}
			return out
		}
	}
	for _, m := range mdHrefRe.FindAllStringSubmatch(p.Markdown, -1) {
		out = append(out, m[1])
	}
	return out
}

func normalizeSiteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, eris.New("scrape: empty site url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: parse site url %q", raw)
	}
	if u.Host == "" {
		return nil, eris.Errorf("scrape: site url has no host: %q", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

func sameHost(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
