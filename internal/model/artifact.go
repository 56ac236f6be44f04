package model

// ArtifactType classifies a candidate personalization fact.
type ArtifactType string

const (
	ArtifactClientOrProject    ArtifactType = "CLIENT_OR_PROJECT"
	ArtifactToolPlatform       ArtifactType = "TOOL_PLATFORM"
	ArtifactExactPhrase        ArtifactType = "EXACT_PHRASE"
	ArtifactServiceProgram     ArtifactType = "SERVICE_PROGRAM"
	ArtifactReviewSignal       ArtifactType = "REVIEW_SIGNAL"
	ArtifactHiringSignal       ArtifactType = "HIRING_SIGNAL"
	ArtifactYearsInBusiness    ArtifactType = "YEARS_IN_BUSINESS"
	ArtifactLocation           ArtifactType = "LOCATION"
	ArtifactCompanyDescription ArtifactType = "COMPANY_DESCRIPTION"

	// ArtifactFallback is the universal, context-free artifact.
	ArtifactFallback ArtifactType = "FALLBACK"
)

// Tier is the confidence class of an artifact type.
type Tier string

const (
	TierS Tier = "S" // insider signal
	TierA Tier = "A" // market context
	TierB Tier = "B" // weak or contextual
)

// Evidence sources attached to artifacts.
const (
	SourceWebsite            = "website"
	SourceCompanyDescription = "company_description"
	SourceResearch           = "research"
	SourceCSVField           = "csv_field"
)

// Artifact is a single extracted candidate fact. Artifacts are created fresh
// for each lead and never mutated after creation.
type Artifact struct {
	Text           string       `json:"text"`
	Type           ArtifactType `json:"type"`
	EvidenceSource string       `json:"evidence_source"`
	EvidenceURL    string       `json:"evidence_url,omitempty"`
	Score          float64      `json:"score"`
}

// FallbackArtifact returns the canonical fallback artifact.
func FallbackArtifact() Artifact {
	return Artifact{Type: ArtifactFallback}
}

// IsFallback reports whether the artifact is the universal fallback.
func (a Artifact) IsFallback() bool {
	return a.Type == ArtifactFallback
}

// typePolicy is one row of the type table.
type typePolicy struct {
	Type ArtifactType
	Tier Tier
}

// typeTable is the single source of truth for tiers and priority order.
// Row index is the priority index: lower sorts first.
var typeTable = [...]typePolicy{
	{ArtifactClientOrProject, TierS},
	{ArtifactToolPlatform, TierS},
	{ArtifactExactPhrase, TierS},
	{ArtifactServiceProgram, TierA},
	{ArtifactReviewSignal, TierA},
	{ArtifactHiringSignal, TierA},
	{ArtifactYearsInBusiness, TierB},
	{ArtifactLocation, TierB},
	{ArtifactCompanyDescription, TierB},
}

var (
	tierByType     map[ArtifactType]Tier
	priorityByType map[ArtifactType]int
)

func init() {
	tierByType = make(map[ArtifactType]Tier, len(typeTable))
	priorityByType = make(map[ArtifactType]int, len(typeTable))
	for i, row := range typeTable {
		tierByType[row.Type] = row.Tier
		priorityByType[row.Type] = i
	}
}

// TierOf returns the confidence tier for an artifact type. Fallback and
// unknown types are tier B.
func TierOf(t ArtifactType) Tier {
	if tier, ok := tierByType[t]; ok {
		return tier
	}
	return TierB
}

// PriorityIndex returns the fixed priority of a type. Unknown types, including
// the fallback, sort after every known type.
func PriorityIndex(t ArtifactType) int {
	if p, ok := priorityByType[t]; ok {
		return p
	}
	return len(typeTable)
}

// KnownTypes returns the non-fallback types in priority order.
func KnownTypes() []ArtifactType {
	out := make([]ArtifactType, len(typeTable))
	for i, row := range typeTable {
		out[i] = row.Type
	}
	return out
}

// IsKnownType reports whether t is one of the non-fallback artifact types.
func IsKnownType(t ArtifactType) bool {
	_, ok := priorityByType[t]
	return ok
}

// ElementType is the kind of scraped page element.
type ElementType string

const (
	ElementHeading  ElementType = "heading"
	ElementCTA      ElementType = "cta"
	ElementService  ElementType = "service"
	ElementClient   ElementType = "client"
	ElementLocation ElementType = "location"
	ElementTool     ElementType = "tool"
)

// ScrapedElement is one raw text unit pulled from a company website.
type ScrapedElement struct {
	Text        string      `json:"text"`
	PageURL     string      `json:"page_url"`
	ElementType ElementType `json:"element_type"`
}

// ValidationResult is the outcome of a hard boolean gate.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// SuggestedAction tells the AI retry loop what to do with a generated line.
type SuggestedAction string

const (
	ActionAccept   SuggestedAction = "accept"
	ActionRetry    SuggestedAction = "retry"
	ActionFallback SuggestedAction = "fallback"
)

// AIValidationResult extends ValidationResult with a quality score for
// model-authored lines.
type AIValidationResult struct {
	IsValid         bool            `json:"is_valid"`
	Errors          []string        `json:"errors,omitempty"`
	QualityScore    int             `json:"quality_score"`
	SuggestedAction SuggestedAction `json:"suggested_action"`
}
