package model

import (
	"strings"
	"time"
)

// Lead is one company to personalize an opening line for.
type Lead struct {
	CompanyName  string   `json:"company_name"`
	Description  string   `json:"description,omitempty"`
	Location     string   `json:"location,omitempty"`
	SiteURL      string   `json:"site_url,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Rating       float64  `json:"rating,omitempty"`
	ReviewCount  int      `json:"review_count,omitempty"`

	SourceID     string `json:"source_id,omitempty"`
	NotionPageID string `json:"notion_page_id,omitempty"`
	SalesforceID string `json:"salesforce_id,omitempty"`
}

// Key returns a stable identifier used to seed per-lead template choice.
func (l Lead) Key() string {
	if l.SourceID != "" {
		return l.SourceID
	}
	return strings.ToLower(strings.TrimSpace(l.CompanyName)) + "|" + strings.ToLower(strings.TrimSpace(l.SiteURL))
}

// Domain returns the bare host of SiteURL, if any.
func (l Lead) Domain() string {
	d := strings.TrimSpace(strings.ToLower(l.SiteURL))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// GenerationMode records which path authored a line.
type GenerationMode string

const (
	ModeTemplate GenerationMode = "template"
	ModeAI       GenerationMode = "ai"
)

// Result is the externally visible output of one personalization call.
type Result struct {
	ID             string         `json:"id,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	Company        string         `json:"company"`
	Line           string         `json:"line"`
	ArtifactType   ArtifactType   `json:"artifact_type"`
	ArtifactText   string         `json:"artifact_text"`
	EvidenceSource string         `json:"evidence_source"`
	EvidenceURL    string         `json:"evidence_url,omitempty"`
	ConfidenceTier Tier           `json:"confidence_tier"`
	Mode           GenerationMode `json:"mode"`
	Attempts       int            `json:"attempts"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// IsFallback reports whether the result used the canned fallback line.
func (r Result) IsFallback() bool {
	return r.ArtifactType == ArtifactFallback
}

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunSummary holds the aggregate counts a batch reports.
type RunSummary struct {
	Total    int `json:"total"`
	TierS    int `json:"tier_s"`
	TierA    int `json:"tier_a"`
	TierB    int `json:"tier_b"`
	Fallback int `json:"fallback"`
	Errors   int `json:"errors"`
}

// Add counts one result into the summary.
func (s *RunSummary) Add(r Result) {
	s.Total++
	if r.IsFallback() {
		s.Fallback++
		return
	}
	switch r.ConfidenceTier {
	case TierS:
		s.TierS++
	case TierA:
		s.TierA++
	default:
		s.TierB++
	}
}

// AddError counts one failed lead.
func (s *RunSummary) AddError() {
	s.Total++
	s.Errors++
}

// Run is a persisted batch run.
type Run struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Status    RunStatus  `json:"status"`
	Summary   RunSummary `json:"summary"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
