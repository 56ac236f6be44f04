package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/resilience"
	"github.com/sells-group/openers/pkg/perplexity"
)

const perplexityPrompt = `Research the company "%s"%s.
List only concrete, verifiable facts found in public sources:
- named clients, projects or case studies
- software, platforms or certifications they use or hold
- named service programs, memberships or guarantees
- review ratings and review counts
- open job postings
- founding year and service area
Write plain sentences. Do not speculate and do not describe recent news.`

// PerplexityProvider asks Perplexity for public facts about a company.
// Calls are rate limited, retried on transient errors and guarded by a
// circuit breaker.
type PerplexityProvider struct {
	client  perplexity.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewPerplexityProvider creates a provider. rps <= 0 disables rate limiting.
func NewPerplexityProvider(client perplexity.Client, rps float64) *PerplexityProvider {
	p := &PerplexityProvider{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     2 * time.Minute,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("research: perplexity circuit state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		retry: resilience.DefaultRetryConfig(),
	}
	p.retry.OnRetry = resilience.RetryLogger("perplexity", "chat_completion")
	if rps > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return p
}

// Name implements Provider.
func (p *PerplexityProvider) Name() string { return "perplexity" }

// Lookup implements Provider.
func (p *PerplexityProvider) Lookup(ctx context.Context, q Query) (*model.Research, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "research: perplexity rate limit")
		}
	}

	temp := 0.1
	req := perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(perplexityPrompt, q.Company, querySuffix(q))},
		},
		Temperature: &temp,
	}

	resp, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			return p.client.ChatCompletion(ctx, req)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "research: perplexity lookup")
	}

	text := truncate(resp.Content(), maxResearchText)
	if text == "" {
		return nil, nil
	}
	res := &model.Research{Provider: p.Name(), Text: text, Sources: resp.Citations}
	if len(resp.Citations) > 0 {
		res.URL = resp.Citations[0]
	}
	return res, nil
}

// querySuffix adds the disambiguating details to the prompt.
func querySuffix(q Query) string {
	var parts []string
	if q.Domain != "" {
		parts = append(parts, "website "+q.Domain)
	}
	if q.Location != "" {
		parts = append(parts, "based in "+q.Location)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
