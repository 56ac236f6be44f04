// Package personalize produces one validated opening line per lead. It
// gathers evidence from collaborators, extracts and ranks artifacts, and
// walks the ranked list until a rendered line passes validation, falling
// back to a context-free line when none does.
package personalize

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/openers/internal/extract"
	"github.com/sells-group/openers/internal/generate"
	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/rank"
	"github.com/sells-group/openers/internal/research"
	"github.com/sells-group/openers/internal/validate"
)

// SiteScraper fetches a company website.
type SiteScraper interface {
	ScrapeSite(ctx context.Context, siteURL string) (*model.Site, error)
}

// Researcher looks up public information about a company.
type Researcher interface {
	Lookup(ctx context.Context, q research.Query) (*model.Research, error)
}

// Personalizer runs the template path. The scraper and researcher are
// optional; without them only the lead's own fields are used.
type Personalizer struct {
	extractor  *extract.Extractor
	artifacts  validate.ArtifactValidator
	lines      *validate.LineValidator
	gen        *generate.Generator
	scraper    SiteScraper
	researcher Researcher
	now        func() time.Time
}

// New creates a Personalizer. gen and lines default when nil.
func New(gen *generate.Generator, lines *validate.LineValidator, scraper SiteScraper, researcher Researcher) *Personalizer {
	if gen == nil {
		gen = generate.New(0)
	}
	if lines == nil {
		lines = validate.NewLineValidator(0, 0)
	}
	return &Personalizer{
		extractor:  extract.New(),
		lines:      lines,
		gen:        gen,
		scraper:    scraper,
		researcher: researcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Personalize gathers evidence for lead and returns its line. The only error
// is a lead without a company name; collaborator failures degrade to less
// evidence.
func (p *Personalizer) Personalize(ctx context.Context, lead model.Lead) (model.Result, error) {
	if strings.TrimSpace(lead.CompanyName) == "" {
		return model.Result{}, eris.New("personalize: company name is required")
	}
	ev := p.Gather(ctx, lead)
	return p.PersonalizeEvidence(lead, ev), nil
}

// Gather scrapes the lead's site and researches the company concurrently.
// Failures are logged and leave the corresponding field nil.
func (p *Personalizer) Gather(ctx context.Context, lead model.Lead) model.Evidence {
	var ev model.Evidence
	log := zap.L().With(zap.String("company", lead.CompanyName))

	var g errgroup.Group
	if p.scraper != nil && strings.TrimSpace(lead.SiteURL) != "" {
		g.Go(func() error {
			site, err := p.scraper.ScrapeSite(ctx, lead.SiteURL)
			if err != nil {
				log.Warn("personalize: scrape failed", zap.String("url", lead.SiteURL), zap.Error(err))
				return nil
			}
			ev.Site = site
			return nil
		})
	}
	if p.researcher != nil {
		g.Go(func() error {
			res, err := p.researcher.Lookup(ctx, research.QueryFor(lead))
			if err != nil {
				log.Warn("personalize: research failed", zap.Error(err))
				return nil
			}
			ev.Research = res
			return nil
		})
	}
	_ = g.Wait()
	return ev
}

// PersonalizeEvidence is the pure core: no I/O, deterministic for a given
// generator seed and lead key.
func (p *Personalizer) PersonalizeEvidence(lead model.Lead, ev model.Evidence) model.Result {
	var elements []model.ScrapedElement
	if ev.Site != nil {
		elements = ev.Site.Elements
	}
	return p.personalize(lead, elements, evidenceTexts(lead, ev))
}

// PersonalizeArtifacts runs the core on already-scraped elements plus extra
// free-text descriptions, which are tagged as research.
func (p *Personalizer) PersonalizeArtifacts(lead model.Lead, elements []model.ScrapedElement, extraDescriptions ...string) model.Result {
	texts := evidenceTexts(lead, model.Evidence{})
	for _, d := range extraDescriptions {
		texts = append(texts, extract.Text{Body: d, Source: model.SourceResearch})
	}
	return p.personalize(lead, elements, texts)
}

// Candidates returns the valid artifacts for lead in rank order.
func (p *Personalizer) Candidates(lead model.Lead, ev model.Evidence) []model.Artifact {
	var elements []model.ScrapedElement
	if ev.Site != nil {
		elements = ev.Site.Elements
	}
	return p.candidates(lead, elements, evidenceTexts(lead, ev))
}

func (p *Personalizer) candidates(lead model.Lead, elements []model.ScrapedElement, texts []extract.Text) []model.Artifact {
	arts := p.extractor.ExtractSources(elements, texts...)
	arts = extract.AppendUnique(arts, p.extractor.ExtractFields(lead)...)
	if loc := strings.TrimSpace(lead.Location); loc != "" && !hasType(arts, model.ArtifactLocation) {
		arts = extract.AppendUnique(arts, model.Artifact{
			Text:           loc,
			Type:           model.ArtifactLocation,
			EvidenceSource: model.SourceCSVField,
			Score:          extract.Score(loc, extract.KindLocation),
		})
	}
	return rank.Rank(p.artifacts.Filter(arts))
}

func (p *Personalizer) personalize(lead model.Lead, elements []model.ScrapedElement, texts []extract.Text) model.Result {
	log := zap.L().With(zap.String("company", lead.CompanyName))
	valid := p.candidates(lead, elements, texts)
	gen := p.gen.ForKey(lead.Key())

	// Bounded by the number of valid artifacts.
	for i, a := range valid {
		line := gen.Generate(a)
		res := p.lines.Validate(line, a, valid, lead.CompanyName)
		if res.IsValid {
			return p.result(lead, a, line, model.ModeTemplate, i+1)
		}
		log.Debug("personalize: line rejected",
			zap.String("artifact_type", string(a.Type)),
			zap.String("artifact", a.Text),
			zap.Strings("errors", res.Errors),
		)
	}

	fb := model.FallbackArtifact()
	return p.result(lead, fb, gen.Generate(fb), model.ModeTemplate, len(valid)+1)
}

func (p *Personalizer) result(lead model.Lead, a model.Artifact, line string, mode model.GenerationMode, attempts int) model.Result {
	return model.Result{
		Company:        lead.CompanyName,
		Line:           line,
		ArtifactType:   a.Type,
		ArtifactText:   a.Text,
		EvidenceSource: a.EvidenceSource,
		EvidenceURL:    a.EvidenceURL,
		ConfidenceTier: rank.ConfidenceTier(a),
		Mode:           mode,
		Attempts:       attempts,
		GeneratedAt:    p.now(),
	}
}

// evidenceTexts lists free-text sources in extraction order: the lead's own
// description, then research, then site body text.
func evidenceTexts(lead model.Lead, ev model.Evidence) []extract.Text {
	var texts []extract.Text
	if d := strings.TrimSpace(lead.Description); d != "" {
		texts = append(texts, extract.Text{Body: d, Source: model.SourceCompanyDescription})
	}
	if ev.Research != nil && strings.TrimSpace(ev.Research.Text) != "" {
		texts = append(texts, extract.Text{Body: ev.Research.Text, Source: model.SourceResearch, URL: ev.Research.URL})
	}
	if ev.Site != nil && strings.TrimSpace(ev.Site.Text) != "" {
		texts = append(texts, extract.Text{Body: ev.Site.Text, Source: model.SourceWebsite, URL: ev.Site.URL})
	}
	return texts
}

func hasType(arts []model.Artifact, t model.ArtifactType) bool {
	for _, a := range arts {
		if a.Type == t {
			return true
		}
	}
	return false
}
