package scrape

import (
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/sells-group/openers/internal/model"
)

// maxElementLen drops paragraphs that a selector happened to catch.
const maxElementLen = 120

// elementSelectors are evaluated in order; a text keeps the first type that
// claims it, so specific sections come before generic headings.
var elementSelectors = []struct {
	sel cascadia.Selector
	typ model.ElementType
}{
	{cascadia.MustCompile(`[class*=client] li, [class*=client] img[alt], [class*=logo] img[alt], ` +
		`[class*=project] h3, [class*=project] h4, [class*=portfolio] h3, [class*=case-stud] h3, ` +
		`[class*=testimonial] cite`), model.ElementClient},
	{cascadia.MustCompile(`[class*=powered], [class*=partner] img[alt], [class*=integration] img[alt], ` +
		`[class*=certif] img[alt]`), model.ElementTool},
	{cascadia.MustCompile(`[class*=service] li, [class*=service] h3, [class*=service] h4, ` +
		`[class*=program] h3, [class*=plan] h3`), model.ElementService},
	{cascadia.MustCompile(`address, [class*=location] li, [class*=service-area] li, ` +
		`[itemprop=addressLocality], [itemprop=areaServed]`), model.ElementLocation},
	{cascadia.MustCompile(`h1, h2, h3`), model.ElementHeading},
	{cascadia.MustCompile(`a.btn, a.button, a[class*=cta], button, [class*=cta] a`), model.ElementCTA},
}

// skippedAncestors are subtrees whose text is chrome, not content.
var skippedAncestors = map[string]bool{
	"nav": true, "footer": true, "script": true, "style": true, "noscript": true,
}

// Elements converts a page into scraped elements. Pages with HTML use CSS
// selectors; markdown-only pages fall back to headings and list items.
func Elements(p model.Page) []model.ScrapedElement {
	if strings.TrimSpace(p.HTML) != "" {
		if els, err := htmlElements(p); err == nil {
			return els
		}
	}
	return markdownElements(p)
}

func htmlElements(p model.Page) ([]model.ScrapedElement, error) {
	doc, err := html.Parse(strings.NewReader(p.HTML))
	if err != nil {
		return nil, err
	}

	c := newElementCollector(p.URL)
	for _, es := range elementSelectors {
		typ := pageSpecificType(es.typ, p.Type)
		for _, n := range es.sel.MatchAll(doc) {
			if underSkipped(n) {
				continue
			}
			c.add(nodeText(n), typ)
		}
	}
	return c.out, nil
}

// pageSpecificType reinterprets headings on pages whose purpose is known.
func pageSpecificType(typ model.ElementType, pt model.PageType) model.ElementType {
	if typ != model.ElementHeading {
		return typ
	}
	switch pt {
	case model.PageTypeServices:
		return model.ElementService
	case model.PageTypeProjects:
		return model.ElementClient
	}
	return typ
}

func underSkipped(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && skippedAncestors[p.Data] {
			return true
		}
	}
	return false
}

// nodeText returns the collapsed text of n, or its alt text for images.
func nodeText(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "img" {
		for _, a := range n.Attr {
			if a.Key == "alt" {
				return strings.Join(strings.Fields(a.Val), " ")
			}
		}
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && skippedAncestors[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

var (
	mdHeadingRe = regexp.MustCompile(`^#{1,3}\s+(.+?)\s*#*$`)
	mdListRe    = regexp.MustCompile(`^\s*[-*+]\s+(.+)$`)
	mdLinkRe    = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdEmphRe    = regexp.MustCompile(`[*_` + "`" + `]+`)
)

// markdownElements reads headings everywhere and list items on services and
// projects pages.
func markdownElements(p model.Page) []model.ScrapedElement {
	c := newElementCollector(p.URL)
	for _, line := range strings.Split(p.Markdown, "\n") {
		if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
			c.add(cleanMarkdown(m[1]), pageSpecificType(model.ElementHeading, p.Type))
			continue
		}
		m := mdListRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch p.Type {
		case model.PageTypeServices:
			c.add(cleanMarkdown(m[1]), model.ElementService)
		case model.PageTypeProjects:
			c.add(cleanMarkdown(m[1]), model.ElementClient)
		}
	}
	return c.out
}

func cleanMarkdown(s string) string {
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdEmphRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

type elementCollector struct {
	pageURL string
	seen    map[string]bool
	out     []model.ScrapedElement
}

func newElementCollector(pageURL string) *elementCollector {
	return &elementCollector{pageURL: pageURL, seen: make(map[string]bool)}
}

func (c *elementCollector) add(text string, typ model.ElementType) {
	text = strings.Trim(text, " |·-–—:")
	if text == "" || len(text) > maxElementLen {
		return
	}
	key := strings.ToLower(text)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.out = append(c.out, model.ScrapedElement{
		Text:        text,
		PageURL:     c.pageURL,
		ElementType: typ,
	})
}
