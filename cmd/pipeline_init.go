package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/config"
	"github.com/sells-group/openers/internal/generate"
	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/personalize"
	"github.com/sells-group/openers/internal/research"
	"github.com/sells-group/openers/internal/resilience"
	"github.com/sells-group/openers/internal/scrape"
	"github.com/sells-group/openers/internal/store"
	"github.com/sells-group/openers/internal/validate"
	anthropicpkg "github.com/sells-group/openers/pkg/anthropic"
	"github.com/sells-group/openers/pkg/firecrawl"
	"github.com/sells-group/openers/pkg/google"
	"github.com/sells-group/openers/pkg/jina"
	"github.com/sells-group/openers/pkg/notion"
	"github.com/sells-group/openers/pkg/perplexity"
	sfpkg "github.com/sells-group/openers/pkg/salesforce"
)

// personalizer is satisfied by both the template and the AI personalizers.
type personalizer interface {
	Personalize(ctx context.Context, lead model.Lead) (model.Result, error)
}

// pipelineEnv holds the store, the personalizer and the optional writeback
// clients needed by the run/batch/serve commands.
type pipelineEnv struct {
	Store        store.Store
	Personalizer personalizer
	Notion       notion.Client // nil when not configured
	Salesforce   sfpkg.Client  // nil when not configured

	// Breakers guards writeback destinations; nil disables it.
	Breakers *resilience.ServiceBreakers
}

// guard runs fn through the named destination's circuit breaker.
func (pe *pipelineEnv) guard(ctx context.Context, service string, fn func(ctx context.Context) error) error {
	if pe.Breakers == nil {
		return fn(ctx)
	}
	return pe.Breakers.Get(service).Execute(ctx, fn)
}

func newWritebackBreakers() *resilience.ServiceBreakers {
	cbCfg := resilience.DefaultCircuitBreakerConfig()
	// A rejected record must not open the circuit for the rest of the batch.
	cbCfg.ShouldTrip = resilience.IsTransient
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("writeback circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return resilience.NewServiceBreakers(cbCfg)
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and wires every
// configured collaborator. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, useAI bool) (*pipelineEnv, error) {
	if useAI {
		cfg.AI.Enabled = true
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	gen, err := buildGenerator()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	lines := validate.NewLineValidator(cfg.Generator.MinLineWords, cfg.Generator.MaxLineWords)

	var scraper personalize.SiteScraper
	if cfg.Scrape.Enabled {
		scraper = buildScraper(st)
	}
	var researcher personalize.Researcher
	if cfg.Research.Enabled {
		if r := buildResearcher(); r != nil {
			researcher = r
		}
	}

	base := personalize.New(gen, lines, scraper, researcher)
	env := &pipelineEnv{Store: st, Personalizer: base, Breakers: newWritebackBreakers()}

	if cfg.AI.Enabled {
		author := personalize.NewAnthropicAuthor(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		env.Personalizer = personalize.NewAI(base, author, cfg.AI.MaxAttempts)
		zap.L().Info("ai personalization enabled", zap.String("model", cfg.Anthropic.Model))
	}

	if cfg.Notion.Token != "" {
		env.Notion = newNotionClient()
	}
	if cfg.Salesforce.Enabled() {
		sf, err := initSalesforce()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		env.Salesforce = sf
	}

	zap.L().Info("pipeline ready",
		zap.Bool("scrape", scraper != nil),
		zap.Bool("research", researcher != nil),
		zap.Bool("ai", cfg.AI.Enabled),
		zap.Bool("notion", env.Notion != nil),
		zap.Bool("salesforce", env.Salesforce != nil),
	)
	return env, nil
}

// initOfflinePipeline builds a template-only pipeline with no network
// collaborators and no writeback.
func initOfflinePipeline(ctx context.Context) (*pipelineEnv, error) {
	cfg.AI.Enabled = false
	if err := cfg.Validate(config.ModeOffline); err != nil {
		return nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := buildGenerator()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	lines := validate.NewLineValidator(cfg.Generator.MinLineWords, cfg.Generator.MaxLineWords)
	return &pipelineEnv{
		Store:        st,
		Personalizer: personalize.New(gen, lines, nil, nil),
	}, nil
}

func buildGenerator() (*generate.Generator, error) {
	if cfg.Generator.TemplatesFile == "" {
		return generate.New(cfg.Generator.Seed), nil
	}
	tmpls, err := generate.LoadTemplates(cfg.Generator.TemplatesFile)
	if err != nil {
		return nil, eris.Wrap(err, "load templates")
	}
	zap.L().Info("templates loaded", zap.String("file", cfg.Generator.TemplatesFile))
	return generate.NewWithTemplates(cfg.Generator.Seed, tmpls), nil
}

// buildScraper chains the local fetcher, the Jina reader and Firecrawl (when
// keyed) behind a site scraper, cached in the store.
func buildScraper(st store.Store) personalize.SiteScraper {
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(),
		scrape.NewJinaAdapter(newJinaClient()),
	}
	if cfg.Firecrawl.Key != "" {
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(
			firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL)),
		))
	}

	chain := scrape.NewChain(scrape.NewPathMatcher(cfg.Scrape.ExcludePaths), scrapers...)
	site := scrape.NewSiteScraper(chain, cfg.Scrape.MaxPages, cfg.Scrape.Concurrency).
		WithTimeout(time.Duration(cfg.Scrape.TimeoutSecs) * time.Second)
	if cfg.Scrape.CacheTTLHours <= 0 {
		return site
	}
	return scrape.NewCachedSiteScraper(site, st, time.Duration(cfg.Scrape.CacheTTLHours)*time.Hour)
}

// buildResearcher chains the configured text providers in order, skipping
// any without an API key. Google Places, when listed, runs alongside the
// chain so a review rating is never hidden by a text hit. Nil when no
// provider is usable.
func buildResearcher() research.Provider {
	var (
		providers []research.Provider
		places    research.Provider
	)
	for _, name := range cfg.Research.Providers {
		switch name {
		case "perplexity":
			if cfg.Perplexity.Key == "" {
				zap.L().Debug("OPENERS_PERPLEXITY_KEY not set, perplexity research disabled")
				continue
			}
			client := perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model),
			)
			providers = append(providers, research.NewPerplexityProvider(client, cfg.Perplexity.RateLimit))
		case "jina":
			if cfg.Jina.Key == "" {
				zap.L().Debug("OPENERS_JINA_KEY not set, jina search research disabled")
				continue
			}
			providers = append(providers, research.NewJinaProvider(newJinaClient(), cfg.Research.MaxResults))
		case "google_places":
			if cfg.Google.Key == "" {
				zap.L().Debug("OPENERS_GOOGLE_KEY not set, google places research disabled")
				continue
			}
			places = research.NewPlacesProvider(google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL)))
		}
	}

	switch {
	case len(providers) == 0 && places == nil:
		return nil
	case places == nil:
		return research.NewChain(providers...)
	case len(providers) == 0:
		return places
	default:
		return research.NewMerge(research.NewChain(providers...), places)
	}
}

func newJinaClient() jina.Client {
	opts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	return jina.NewClient(cfg.Jina.Key, opts...)
}

// notionTimeout bounds a single Notion API call.
const notionTimeout = 30 * time.Second

func newNotionClient() notion.Client {
	return notion.NewClient(cfg.Notion.Token,
		notion.WithRateLimit(cfg.Notion.RateLimit),
		notion.WithHTTPClient(&http.Client{Timeout: notionTimeout}),
	)
}
