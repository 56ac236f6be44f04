package research

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/openers/internal/model"
)

// Merge queries every provider concurrently and joins the non-empty results
// in provider order. Unlike Chain, a hit from one provider does not hide the
// others.
type Merge struct {
	providers []Provider
}

// NewMerge creates a Merge. Nil providers are skipped.
func NewMerge(providers ...Provider) *Merge {
	m := &Merge{}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

// Name implements Provider.
func (m *Merge) Name() string { return "merge" }

// Lookup implements Provider. It errors only when every provider errored.
func (m *Merge) Lookup(ctx context.Context, q Query) (*model.Research, error) {
	if strings.TrimSpace(q.Company) == "" {
		return nil, eris.New("research: empty company name")
	}

	results := make([]*model.Research, len(m.providers))
	errs := make([]error, len(m.providers))

	var g errgroup.Group
	for i, p := range m.providers {
		g.Go(func() error {
			results[i], errs[i] = p.Lookup(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out     model.Research
		texts   []string
		names   []string
		failed  int
		lastErr error
	)
	for i, res := range results {
		if errs[i] != nil {
			failed++
			lastErr = errs[i]
			zap.L().Warn("research: provider failed",
				zap.String("provider", m.providers[i].Name()),
				zap.String("company", q.Company),
				zap.Error(errs[i]),
			)
			continue
		}
		if res == nil || strings.TrimSpace(res.Text) == "" {
			continue
		}
		texts = append(texts, strings.TrimSpace(res.Text))
		names = append(names, res.Provider)
		if out.URL == "" {
			out.URL = res.URL
		}
		out.Sources = append(out.Sources, res.Sources...)
	}

	if len(texts) == 0 {
		if failed > 0 && failed == len(m.providers) {
			return nil, eris.Wrap(lastErr, "research: all providers failed")
		}
		return nil, nil
	}
	out.Provider = strings.Join(names, "+")
	out.Text = truncate(strings.Join(texts, "\n\n"), maxResearchText)
	return &out, nil
}
