// Package scrape fetches company websites through a chain of scrapers and
// turns the pages into scraped elements for artifact extraction.
package scrape

import (
	"context"

	"github.com/sells-group/openers/internal/model"
)

// Result holds a scraped page with its source.
type Result struct {
	Page   model.Page
	Source string // e.g. "local_http", "jina", "firecrawl"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
