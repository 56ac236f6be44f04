// Package store persists personalization results, batch runs, scraped-site
// cache entries and the writeback dead letter queue.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/resilience"
)

// ErrNotFound is returned when a result or run does not exist.
var ErrNotFound = eris.New("store: not found")

const defaultListLimit = 100

// ResultFilter specifies criteria for listing results.
type ResultFilter struct {
	Company string `json:"company,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// CachedSite is a scraped site with its cache window.
type CachedSite struct {
	URL       string      `json:"url"`
	Site      *model.Site `json:"site"`
	CachedAt  time.Time   `json:"cached_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Store defines the persistence interface.
type Store interface {
	// Results
	SaveResult(ctx context.Context, r *model.Result) error
	GetResult(ctx context.Context, id string) (*model.Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error)

	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Site cache
	GetCachedSite(ctx context.Context, siteURL string) (*CachedSite, error)
	SetCachedSite(ctx context.Context, siteURL string, site *model.Site, ttl time.Duration) error
	DeleteExpiredSites(ctx context.Context) (int, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
