package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierOf(t *testing.T) {
	tests := []struct {
		typ  ArtifactType
		want Tier
	}{
		{ArtifactClientOrProject, TierS},
		{ArtifactToolPlatform, TierS},
		{ArtifactExactPhrase, TierS},
		{ArtifactServiceProgram, TierA},
		{ArtifactReviewSignal, TierA},
		{ArtifactHiringSignal, TierA},
		{ArtifactYearsInBusiness, TierB},
		{ArtifactLocation, TierB},
		{ArtifactCompanyDescription, TierB},
		{ArtifactFallback, TierB},
		{ArtifactType("SOMETHING_ELSE"), TierB},
	}
	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			assert.Equal(t, tc.want, TierOf(tc.typ))
		})
	}
}

func TestPriorityIndex_TiersAreContiguous(t *testing.T) {
	types := KnownTypes()
	assert.Len(t, types, 9)

	rank := map[Tier]int{TierS: 0, TierA: 1, TierB: 2}
	for i := 1; i < len(types); i++ {
		prev, cur := types[i-1], types[i]
		assert.Less(t, PriorityIndex(prev), PriorityIndex(cur))
		assert.LessOrEqual(t, rank[TierOf(prev)], rank[TierOf(cur)], "%s before %s", prev, cur)
	}
}

func TestPriorityIndex_UnknownAndFallbackSortLast(t *testing.T) {
	last := PriorityIndex(ArtifactCompanyDescription)
	assert.Greater(t, PriorityIndex(ArtifactFallback), last)
	assert.Greater(t, PriorityIndex(ArtifactType("NOPE")), last)
	assert.False(t, IsKnownType(ArtifactFallback))
}

func TestFallbackArtifact(t *testing.T) {
	fb := FallbackArtifact()
	assert.True(t, fb.IsFallback())
	assert.Empty(t, fb.Text)
	assert.Zero(t, fb.Score)
	assert.Empty(t, fb.EvidenceSource)
}

func TestLeadKeyAndDomain(t *testing.T) {
	l := Lead{CompanyName: " Acme Plumbing ", SiteURL: "https://www.acmeplumbing.com/about?x=1"}
	assert.Equal(t, "acme plumbing|https://www.acmeplumbing.com/about?x=1", l.Key())
	assert.Equal(t, "acmeplumbing.com", l.Domain())

	l.SourceID = "row-7"
	assert.Equal(t, "row-7", l.Key())
}

func TestRunSummaryAdd(t *testing.T) {
	var s RunSummary
	s.Add(Result{ArtifactType: ArtifactToolPlatform, ConfidenceTier: TierS})
	s.Add(Result{ArtifactType: ArtifactServiceProgram, ConfidenceTier: TierA})
	s.Add(Result{ArtifactType: ArtifactLocation, ConfidenceTier: TierB})
	s.Add(Result{ArtifactType: ArtifactFallback, ConfidenceTier: TierB})
	s.AddError()

	assert.Equal(t, RunSummary{Total: 5, TierS: 1, TierA: 1, TierB: 1, Fallback: 1, Errors: 1}, s)
}
