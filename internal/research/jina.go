package research

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/pkg/jina"
)

const defaultJinaResults = 5

// JinaProvider builds research text from Jina web search snippets.
type JinaProvider struct {
	client     jina.Client
	maxResults int
}

// NewJinaProvider creates a provider that keeps up to maxResults results.
func NewJinaProvider(client jina.Client, maxResults int) *JinaProvider {
	if maxResults <= 0 {
		maxResults = defaultJinaResults
	}
	return &JinaProvider{client: client, maxResults: maxResults}
}

// Name implements Provider.
func (p *JinaProvider) Name() string { return "jina" }

// Lookup implements Provider.
func (p *JinaProvider) Lookup(ctx context.Context, q Query) (*model.Research, error) {
	query := q.Company
	if q.Location != "" {
		query += " " + q.Location
	}

	resp, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "research: jina search")
	}

	var (
		b       strings.Builder
		sources []string
	)
	for _, r := range resp.Data {
		if len(sources) == p.maxResults {
			break
		}
		snippet := strings.TrimSpace(r.Description)
		if snippet == "" {
			snippet = strings.TrimSpace(r.Content)
		}
		if snippet == "" || !mentions(r, q) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(snippet)
		sources = append(sources, r.URL)
	}

	text := truncate(b.String(), maxResearchText)
	if text == "" {
		return nil, nil
	}
	return &model.Research{Provider: p.Name(), Text: text, URL: sources[0], Sources: sources}, nil
}

// mentions keeps results that name the company or live on its domain.
func mentions(r jina.SearchResult, q Query) bool {
	if q.Domain != "" && strings.Contains(strings.ToLower(r.URL), q.Domain) {
		return true
	}
	name := strings.ToLower(q.Company)
	for _, field := range []string{r.Title, r.Description, r.Content} {
		if strings.Contains(strings.ToLower(field), name) {
			return true
		}
	}
	return false
}
