package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validation modes, one per command family.
const (
	ModeOffline = "offline" // no network collaborators
	ModeRun     = "run"
	ModeBatch   = "batch"
	ModeServe   = "serve"
)

const maxConcurrency = 64

var knownProviders = map[string]bool{"perplexity": true, "jina": true, "google_places": true}

// Validate checks that the keys required by mode are set. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	switch mode {
	case ModeOffline, ModeRun, ModeBatch, ModeServe:
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string
	add := func(msg string) { problems = append(problems, msg) }

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for postgres")
		}
	default:
		add("store.driver must be sqlite or postgres, got " + quote(c.Store.Driver))
	}

	g := c.Generator
	if g.MinLineWords < 0 || g.MaxLineWords < 0 {
		add("generator line word bounds must not be negative")
	} else if g.MinLineWords > 0 && g.MaxLineWords > 0 && g.MinLineWords > g.MaxLineWords {
		add("generator.min_line_words exceeds generator.max_line_words")
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > maxConcurrency {
		add("batch.concurrency must be between 1 and 64")
	}

	if mode != ModeOffline {
		if c.AI.Enabled && c.Anthropic.Key == "" {
			add("anthropic.key is required when ai.enabled is set (OPENERS_ANTHROPIC_KEY)")
		}
		if c.Research.Enabled {
			for _, p := range c.Research.Providers {
				if !knownProviders[strings.ToLower(p)] {
					add("research.providers has unknown provider " + quote(p))
				}
			}
		}
	}

	switch mode {
	case ModeBatch:
		if c.Notion.Token == "" {
			add("notion.token is required for batch (OPENERS_NOTION_TOKEN)")
		}
		if c.Notion.LeadDB == "" {
			add("notion.lead_db is required for batch (OPENERS_NOTION_LEAD_DB)")
		}
	case ModeServe:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be between 1 and 65535")
		}
	}

	if c.Salesforce.ClientID != "" && c.Salesforce.KeyPath == "" {
		add("salesforce.key_path is required when salesforce.client_id is set")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}
