package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports always returns true; Firecrawl is the last resort for any URL.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl, asking for both markdown and
// HTML so element extraction can use the markup.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{"markdown", "html"},
		OnlyMainContent: false,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.New("firecrawl: scrape not successful")
	}
	return &Result{
		Page: model.Page{
			URL:        firstNonEmpty(resp.Data.URL, targetURL),
			Title:      resp.Data.Title,
			Markdown:   resp.Data.Markdown,
			HTML:       resp.Data.HTML,
			StatusCode: resp.Data.StatusCode,
			Type:       model.ClassifyPath(targetURL),
		},
		Source: "firecrawl",
	}, nil
}
