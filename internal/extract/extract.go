package extract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/model"
)

// Text is one free-text source run through the extraction rules.
type Text struct {
	Body   string
	Source string // evidence source tag, e.g. model.SourceResearch
	URL    string
}

// Extractor turns scraped elements and free text into typed artifacts.
// It holds only immutable rule tables and is safe for concurrent use.
type Extractor struct {
	rules []rule
}

// New returns an Extractor with the default rule table.
func New() *Extractor {
	return &Extractor{rules: defaultRules()}
}

var elementArtifactType = map[model.ElementType]model.ArtifactType{
	model.ElementClient:   model.ArtifactClientOrProject,
	model.ElementTool:     model.ArtifactToolPlatform,
	model.ElementService:  model.ArtifactServiceProgram,
	model.ElementLocation: model.ArtifactLocation,
	model.ElementHeading:  model.ArtifactExactPhrase,
	model.ElementCTA:      model.ArtifactExactPhrase,
}

// ExtractAll extracts artifacts from scraped elements and a company
// description. Empty input yields an empty result.
func (e *Extractor) ExtractAll(elements []model.ScrapedElement, description string) []model.Artifact {
	return e.ExtractSources(elements, Text{Body: description, Source: model.SourceCompanyDescription})
}

// ExtractSources extracts artifacts from scraped elements followed by each
// free-text source in order. Texts are deduplicated case-insensitively across
// the whole call.
func (e *Extractor) ExtractSources(elements []model.ScrapedElement, texts ...Text) []model.Artifact {
	c := newCollector()
	e.fromElements(c, elements)
	for _, t := range texts {
		e.fromText(c, t)
	}
	return c.out
}

// ExtractFields builds artifacts from structured lead fields: technologies,
// rating plus review count, and keywords.
func (e *Extractor) ExtractFields(lead model.Lead) []model.Artifact {
	c := newCollector()
	for _, tech := range lead.Technologies {
		tech = strings.TrimSpace(tech)
		if tech == "" {
			continue
		}
		if canon, ok := canonicalTool(tech); ok {
			tech = canon
		}
		c.add(model.Artifact{
			Text:           tech,
			Type:           model.ArtifactToolPlatform,
			EvidenceSource: model.SourceCSVField,
			Score:          5.0,
		}, false)
	}

	if lead.Rating > 0 && lead.ReviewCount > 0 {
		c.add(model.Artifact{
			Text:           formatReviews(lead.Rating, lead.ReviewCount),
			Type:           model.ArtifactReviewSignal,
			EvidenceSource: model.SourceCSVField,
			Score:          5.0,
		}, false)
	}

	if len(lead.Keywords) > 0 {
		e.fromText(c, Text{Body: strings.Join(lead.Keywords, ". "), Source: model.SourceCSVField})
	}
	return c.out
}

// AppendUnique appends the artifacts of extra whose text is not already in
// base (case-insensitive).
func AppendUnique(base []model.Artifact, extra ...model.Artifact) []model.Artifact {
	c := newCollector()
	for _, a := range base {
		c.seen[dedupeKey(a.Text)] = true
	}
	c.out = append([]model.Artifact(nil), base...)
	for _, a := range extra {
		c.add(a, false)
	}
	return c.out
}

func (e *Extractor) fromElements(c *collector, elements []model.ScrapedElement) {
	for _, el := range elements {
		text := strings.Join(strings.Fields(el.Text), " ")
		typ, ok := elementArtifactType[el.ElementType]
		if !ok || text == "" {
			continue
		}
		if isGenericElement(text) || !withinElementLength(text) {
			continue
		}
		c.add(model.Artifact{
			Text:           text,
			Type:           typ,
			EvidenceSource: model.SourceWebsite,
			EvidenceURL:    el.PageURL,
			Score:          Score(text, string(el.ElementType)),
		}, false)
	}
}

func (e *Extractor) fromText(c *collector, t Text) {
	body := strings.TrimSpace(t.Body)
	if body == "" {
		return
	}
	source := t.Source
	if source == "" {
		source = model.SourceCompanyDescription
	}
	for _, r := range e.rules {
		for _, loc := range r.Pattern.FindAllStringSubmatchIndex(body, -1) {
			m := submatches(body, loc)
			text := r.Capture(m)
			if text == "" {
				continue
			}
			if r.KeepOpening != nil && opensSentence(body, loc[0]) && !r.KeepOpening(m, text) {
				continue
			}
			if c.add(model.Artifact{
				Text:           text,
				Type:           r.Type,
				EvidenceSource: source,
				EvidenceURL:    t.URL,
				Score:          r.Score(text),
			}, r.SkipContained) {
				zap.L().Debug("extract: rule matched",
					zap.String("rule", r.Name),
					zap.String("text", text),
					zap.String("source", source),
				)
			}
		}
	}
}

func submatches(body string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = body[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

// opensSentence reports whether the text at i starts the body, a line or a
// sentence. Markdown markers and opening punctuation are skipped.
func opensSentence(body string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch c := body[j]; {
		case c == '\n':
			return true
		case c == ' ' || c == '\t' || c == '\r' || strings.IndexByte("#*>-|(\"'", c) >= 0:
			continue
		default:
			return strings.IndexByte(".!?", c) >= 0
		}
	}
	return true
}

// collector accumulates artifacts for one call and rejects duplicates.
type collector struct {
	seen map[string]bool
	out  []model.Artifact
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

// add appends a unless its text was already collected. With skipContained,
// a is also dropped when its text appears inside an earlier artifact's text.
func (c *collector) add(a model.Artifact, skipContained bool) bool {
	key := dedupeKey(a.Text)
	if key == "" || c.seen[key] {
		return false
	}
	if skipContained {
		for _, prev := range c.out {
			if containsWord(dedupeKey(prev.Text), key) {
				return false
			}
		}
	}
	c.seen[key] = true
	c.out = append(c.out, a)
	return true
}

func formatReviews(rating float64, count int) string {
	return fmt.Sprintf("%.1f stars across %d reviews", rating, count)
}

func dedupeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// containsWord reports whether needle occurs in hay on word boundaries.
func containsWord(hay, needle string) bool {
	for i := 0; ; {
		j := strings.Index(hay[i:], needle)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(needle)
		if (start == 0 || !isWordByte(hay[start-1])) && (end == len(hay) || !isWordByte(hay[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
