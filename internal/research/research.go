// Package research looks up public information about a company so the
// extractor has more than the lead's own fields to work from.
package research

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/model"
)

// maxResearchText bounds the text handed to the extractor.
const maxResearchText = 6000

// Query identifies the company to research. Only Company is required.
type Query struct {
	Company  string
	Domain   string
	Location string
}

// QueryFor builds a Query from a lead.
func QueryFor(lead model.Lead) Query {
	return Query{Company: lead.CompanyName, Domain: lead.Domain(), Location: lead.Location}
}

// Provider returns research text for a company. A nil result with a nil
// error means the provider found nothing.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, q Query) (*model.Research, error)
}

// Chain tries providers in order and returns the first non-empty result.
type Chain struct {
	providers []Provider
}

// NewChain creates a Chain. Nil providers are skipped.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// Lookup implements Provider. It errors only when every provider errored.
func (c *Chain) Lookup(ctx context.Context, q Query) (*model.Research, error) {
	if strings.TrimSpace(q.Company) == "" {
		return nil, eris.New("research: empty company name")
	}

	var lastErr error
	failed := 0
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "research: context done")
		}
		res, err := p.Lookup(ctx, q)
		if err != nil {
			failed++
			lastErr = err
			zap.L().Warn("research: provider failed",
				zap.String("provider", p.Name()),
				zap.String("company", q.Company),
				zap.Error(err),
			)
			continue
		}
		if res != nil && strings.TrimSpace(res.Text) != "" {
			return res, nil
		}
		zap.L().Debug("research: provider returned nothing",
			zap.String("provider", p.Name()),
			zap.String("company", q.Company),
		)
	}
	if failed > 0 && failed == len(c.providers) {
		return nil, eris.Wrap(lastErr, "research: all providers failed")
	}
	return nil, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
