package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/store"
)

// DefaultCacheTTL is how long a scraped site is reused.
const DefaultCacheTTL = 7 * 24 * time.Hour

// SiteCache is the slice of store.Store the cache decorator needs.
type SiteCache interface {
	GetCachedSite(ctx context.Context, siteURL string) (*store.CachedSite, error)
	SetCachedSite(ctx context.Context, siteURL string, site *model.Site, ttl time.Duration) error
}

// SiteFetcher scrapes a whole company site.
type SiteFetcher interface {
	ScrapeSite(ctx context.Context, siteURL string) (*model.Site, error)
}

// CachedSiteScraper serves sites from cache and scrapes on a miss. Cache
// errors are logged and never fail the scrape.
type CachedSiteScraper struct {
	next  SiteFetcher
	cache SiteCache
	ttl   time.Duration
}

// NewCachedSiteScraper wraps next with a cache. A non-positive ttl uses
// DefaultCacheTTL.
func NewCachedSiteScraper(next SiteFetcher, cache SiteCache, ttl time.Duration) *CachedSiteScraper {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSiteScraper{next: next, cache: cache, ttl: ttl}
}

// ScrapeSite implements SiteFetcher.
func (c *CachedSiteScraper) ScrapeSite(ctx context.Context, siteURL string) (*model.Site, error) {
	key := siteURL
	if u, err := normalizeSiteURL(siteURL); err == nil {
		key = u.String()
	}

	cached, err := c.cache.GetCachedSite(ctx, key)
	if err != nil {
		zap.L().Warn("scrape: cache lookup failed", zap.String("url", key), zap.Error(err))
	}
	if cached != nil && cached.Site != nil {
		zap.L().Debug("scrape: cache hit", zap.String("url", key))
		return cached.Site, nil
	}

	site, err := c.next.ScrapeSite(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetCachedSite(ctx, key, site, c.ttl); err != nil {
		zap.L().Warn("scrape: cache store failed", zap.String("url", key), zap.Error(err))
	}
	return site, nil
}
