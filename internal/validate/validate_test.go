package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/internal/model"
)

func tool(text string) model.Artifact {
	return model.Artifact{Text: text, Type: model.ArtifactToolPlatform, EvidenceSource: model.SourceWebsite, Score: 6}
}

func TestArtifactValidator(t *testing.T) {
	v := ArtifactValidator{}
	tests := []struct {
		name  string
		text  string
		typ   model.ArtifactType
		valid bool
	}{
		{"fallback", "", model.ArtifactFallback, true},
		{"specific certification", "IICRC certified", model.ArtifactServiceProgram, true},
		{"location", "Dallas, TX", model.ArtifactLocation, true},
		{"greater is not great", "Greater Boston", model.ArtifactLocation, true},
		{"category inside a name", "HVAC Comfort Club", model.ArtifactServiceProgram, true},
		{"quoted trusted partner", "the trusted partner", model.ArtifactExactPhrase, false},
		{"timing word", "Recently launched app", model.ArtifactCompanyDescription, false},
		{"timing phrase", "rolled out online booking", model.ArtifactServiceProgram, false},
		{"hype word", "Great Lakes Plumbing", model.ArtifactCompanyDescription, false},
		{"bare category", "HVAC", model.ArtifactCompanyDescription, false},
		{"bare category punctuated", "Plumbing.", model.ArtifactCompanyDescription, false},
		{"country", "USA", model.ArtifactLocation, false},
		{"jargon", "Customer Satisfaction", model.ArtifactExactPhrase, false},
		{"marketing phrase", "family owned since 1990", model.ArtifactExactPhrase, false},
		{"empty", "  ", model.ArtifactCompanyDescription, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Validate(model.Artifact{Text: tc.text, Type: tc.typ})
			assert.Equal(t, tc.valid, res.IsValid, "errors: %v", res.Errors)
			if !tc.valid {
				assert.NotEmpty(t, res.Errors)
			}
		})
	}
}

func TestArtifactValidator_Filter(t *testing.T) {
	in := []model.Artifact{
		tool("ServiceTitan"),
		{Text: "the trusted partner", Type: model.ArtifactExactPhrase},
		{Text: "Dallas, TX", Type: model.ArtifactLocation},
	}
	out := ArtifactValidator{}.Filter(in)
	require.Len(t, out, 2)
	assert.Equal(t, "ServiceTitan", out[0].Text)
	assert.Equal(t, "Dallas, TX", out[1].Text)
}

func TestLineValidator_Valid(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := tool("ServiceTitan")
	res := v.Validate("Noticed your team runs on ServiceTitan.", a, []model.Artifact{a}, "Acme Plumbing")
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
}

func TestLineValidator_GoodLineBaseline(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := model.Artifact{Text: "4.8 stars across 156 reviews", Type: model.ArtifactReviewSignal, EvidenceSource: model.SourceCSVField}
	res := v.Validate("4.8 stars across 156 reviews is the kind of trust that gets earned.", a, []model.Artifact{a}, "Acme Plumbing")
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

func TestLineValidator_BannedWords(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := tool("ServiceTitan")

	res := v.Validate("Recently noticed your team runs on ServiceTitan.", a, nil, "")
	assert.False(t, res.IsValid)
	assert.True(t, HasCheck(res.Errors, CheckBannedWord))

	loc := model.Artifact{Text: "Greater Boston", Type: model.ArtifactLocation, EvidenceSource: model.SourceCSVField}
	res = v.Validate("Noticed your crew serves Greater Boston homeowners every day.", loc, []model.Artifact{loc}, "Acme Plumbing")
	assert.False(t, HasCheck(res.Errors, CheckBannedWord))
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

func TestLineValidator_Stacking(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := tool("ServiceTitan")
	club := model.Artifact{Text: "Comfort Club", Type: model.ArtifactServiceProgram, EvidenceSource: model.SourceWebsite}

	res := v.Validate("Noticed your team runs on ServiceTitan and the Comfort Club.", a, []model.Artifact{a, club}, "")
	assert.False(t, res.IsValid)
	assert.True(t, HasCheck(res.Errors, CheckStacking), "errors: %v", res.Errors)
}

func TestLineValidator_StackingCountsContainedTextOnce(t *testing.T) {
	v := NewLineValidator(0, 0)
	outer := model.Artifact{Text: "Comfort Club Membership", Type: model.ArtifactServiceProgram, EvidenceSource: model.SourceWebsite}
	inner := model.Artifact{Text: "Comfort Club", Type: model.ArtifactServiceProgram, EvidenceSource: model.SourceWebsite}

	res := v.Validate("Saw the Comfort Club Membership mentioned on your site.", outer, []model.Artifact{inner, outer}, "Acme Plumbing")
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		hay, needle string
		want        bool
	}{
		{"noticed your team runs on servicetitan.", "servicetitan", true},
		{"saw the comfort club mentioned.", "comfort club", true},
		{"saw the comfort clubhouse.", "comfort club", false},
		{"the club at the club.", "club", true},
		{"clubs and a club", "club", true},
		{"a+ roofing (a+) rated", "a+", true},
		{"café olé", "olé", true},
		{"caféolé", "olé", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.hay+"/"+tt.needle, func(t *testing.T) {
			assert.Equal(t, tt.want, containsPhrase(tt.hay, tt.needle))
		})
	}
}

func TestLineValidator_StackingIgnoresPartialWords(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := tool("Jobber")
	pro := model.Artifact{Text: "Pro", Type: model.ArtifactServiceProgram, EvidenceSource: model.SourceWebsite}

	res := v.Validate("Noticed your team runs on Jobber for every project.", a, []model.Artifact{a, pro}, "")
	assert.False(t, HasCheck(res.Errors, CheckStacking), "errors: %v", res.Errors)
}

func TestLineValidator_Failures(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := tool("ServiceTitan")
	tests := []struct {
		name    string
		line    string
		company string
		check   string
	}{
		{"too short", "Saw your ServiceTitan.", "", CheckWordCount},
		{"too long", "Noticed your team runs on ServiceTitan" + strings.Repeat(" and more", 15) + ".", "", CheckWordCount},
		{"artifact missing", "Noticed your team runs on Jobber every day.", "", CheckArtifactMissing},
		{"fabrication", "I met your team at the Denver Home Expo using ServiceTitan.", "", CheckFabrication},
		{"booth", "Stopped by your booth and saw ServiceTitan running.", "", CheckFabrication},
		{"no terminal punctuation", "Noticed your team runs on ServiceTitan", "", CheckIncomplete},
		{"dangling word", "Noticed your ServiceTitan team works with the.", "", CheckIncomplete},
		{"no verb", "Your ServiceTitan setup, top to bottom.", "", CheckIncomplete},
		{"placeholder", "Noticed your team runs on ServiceTitan for {Company}.", "", CheckPlaceholder},
		{"statement about company", "Acme Plumbing runs on ServiceTitan for every job.", "Acme Plumbing", CheckOpener},
		{"company as subject", "Acme Plumbing runs on ServiceTitan for every job.", "Acme Plumbing", CheckCompanySubject},
		{"possessive subject", "Acme Plumbing's crew is on ServiceTitan with your dispatch.", "Acme Plumbing LLC", CheckCompanySubject},
		{"other company", "Saw your work alongside Bolt Electric Services on ServiceTitan.", "Acme Plumbing", CheckCompanyMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Validate(tc.line, a, []model.Artifact{a}, tc.company)
			assert.False(t, res.IsValid)
			assert.True(t, HasCheck(res.Errors, tc.check), "errors: %v", res.Errors)
		})
	}
}

func TestLineValidator_CompanyWordOverlapIsNotMismatch(t *testing.T) {
	v := NewLineValidator(0, 0)
	a := tool("ServiceTitan")
	res := v.Validate("Saw your work alongside Bolt Electric Services on ServiceTitan.", a, []model.Artifact{a}, "Bolt Electric LLC")
	assert.False(t, HasCheck(res.Errors, CheckCompanyMismatch), "errors: %v", res.Errors)
}

func TestLineValidator_FallbackExemptFromArtifactCheck(t *testing.T) {
	v := NewLineValidator(0, 0)
	res := v.Validate("Came across your company and wanted to reach out.", model.FallbackArtifact(), nil, "Acme Plumbing")
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

func TestLineValidator_ConfiguredBounds(t *testing.T) {
	v := NewLineValidator(3, 6)
	a := tool("ServiceTitan")
	res := v.Validate("Noticed your team runs on ServiceTitan daily.", a, nil, "")
	assert.True(t, HasCheck(res.Errors, CheckWordCount))
}

func TestAIValidator(t *testing.T) {
	v := NewAIValidator(nil)
	a := tool("ServiceTitan")

	t.Run("accept", func(t *testing.T) {
		res := v.Validate("Noticed your team runs on ServiceTitan.", a, []model.Artifact{a}, "Acme Plumbing")
		assert.True(t, res.IsValid)
		assert.Equal(t, 100, res.QualityScore)
		assert.Equal(t, model.ActionAccept, res.SuggestedAction)
	})

	t.Run("hype retries", func(t *testing.T) {
		res := v.Validate("Noticed your amazing team runs on ServiceTitan.", a, []model.Artifact{a}, "")
		assert.False(t, res.IsValid)
		assert.Equal(t, 70, res.QualityScore)
		assert.Equal(t, model.ActionRetry, res.SuggestedAction)
	})

	t.Run("unclosed quote retries", func(t *testing.T) {
		phrase := model.Artifact{Text: "Comfort you can count on", Type: model.ArtifactExactPhrase, EvidenceSource: model.SourceWebsite}
		res := v.Validate(`Your tagline "Comfort you can count on caught my eye.`, phrase, []model.Artifact{phrase}, "")
		assert.False(t, res.IsValid)
		assert.Equal(t, 80, res.QualityScore)
		assert.Equal(t, model.ActionRetry, res.SuggestedAction)
	})

	t.Run("fabricated and truncated falls back", func(t *testing.T) {
		res := v.Validate("I met your team at the Home Expo and saw you run", a, []model.Artifact{a}, "")
		assert.False(t, res.IsValid)
		assert.Equal(t, 20, res.QualityScore)
		assert.Equal(t, model.ActionFallback, res.SuggestedAction)
	})

	t.Run("empty falls back", func(t *testing.T) {
		res := v.Validate("   ", a, nil, "")
		assert.False(t, res.IsValid)
		assert.Equal(t, model.ActionFallback, res.SuggestedAction)
	})
}
