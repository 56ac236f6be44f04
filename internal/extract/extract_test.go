package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/internal/model"
)

func findArtifact(arts []model.Artifact, text string) (model.Artifact, bool) {
	for _, a := range arts {
		if a.Text == text {
			return a, true
		}
	}
	return model.Artifact{}, false
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind string
		want float64
	}{
		{"client three caps", "Acme Home Services", KindClient, 6.5},
		{"lowercase with stop words", "the best plumbing in town", "", 0.4},
		{"trademark program", "Gold Star Club®", KindService, 6.5},
		{"two words heading", "Emergency Repairs", KindHeading, 3.5},
		{"single lowercase", "plumbing", "", -1.0},
		{"empty", "", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.text, tc.kind), 1e-9)
		})
	}
}

func TestExtractAll_Empty(t *testing.T) {
	e := New()
	assert.Empty(t, e.ExtractAll(nil, ""))
	assert.Empty(t, e.ExtractAll([]model.ScrapedElement{{Text: "  ", ElementType: model.ElementHeading}}, "   "))
}

func TestExtractAll_Elements(t *testing.T) {
	e := New()
	elements := []model.ScrapedElement{
		{Text: "Contact Us", PageURL: "https://acme.com", ElementType: model.ElementHeading},
		{Text: "Welcome to Acme Plumbing", PageURL: "https://acme.com", ElementType: model.ElementHeading},
		{Text: "ServiceTitan", PageURL: "https://acme.com", ElementType: model.ElementTool},
		{Text: "Riverside  Medical Center", PageURL: "https://acme.com/work", ElementType: model.ElementClient},
		{Text: "Tankless Water Heater Installs", PageURL: "https://acme.com/services", ElementType: model.ElementService},
		{Text: "Something", PageURL: "https://acme.com", ElementType: model.ElementType("footer")},
	}

	arts := e.ExtractAll(elements, "")
	require.Len(t, arts, 2)

	client := arts[0]
	assert.Equal(t, "Riverside Medical Center", client.Text)
	assert.Equal(t, model.ArtifactClientOrProject, client.Type)
	assert.Equal(t, model.SourceWebsite, client.EvidenceSource)
	assert.Equal(t, "https://acme.com/work", client.EvidenceURL)
	assert.InDelta(t, 6.5, client.Score, 1e-9)

	svc := arts[1]
	assert.Equal(t, model.ArtifactServiceProgram, svc.Type)
	assert.InDelta(t, 2.0+2.0+2.0, svc.Score, 1e-9)
}

func TestExtractAll_QuotedTrustedPartnerAndCertification(t *testing.T) {
	e := New()
	arts := e.ExtractAll(nil, `We are "the trusted partner" serving Dallas, TX and certified IICRC.`)

	quoted, ok := findArtifact(arts, "the trusted partner")
	require.True(t, ok, "quoted phrase should be extracted")
	assert.Equal(t, model.ArtifactExactPhrase, quoted.Type)
	assert.Equal(t, model.SourceCompanyDescription, quoted.EvidenceSource)
	assert.InDelta(t, 2.7, quoted.Score, 1e-9)

	cert, ok := findArtifact(arts, "IICRC certified")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactServiceProgram, cert.Type)
	assert.InDelta(t, 4.0, cert.Score, 1e-9)

	loc, ok := findArtifact(arts, "Dallas, TX")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactLocation, loc.Type)
	assert.InDelta(t, 2.0, loc.Score, 1e-9)

	_, ok = findArtifact(arts, "Dallas")
	assert.False(t, ok, "proper noun inside a location should not be collected twice")
	_, ok = findArtifact(arts, "IICRC")
	assert.False(t, ok)
}

func TestExtractAll_PoweredByTool(t *testing.T) {
	e := New()
	arts := e.ExtractAll(nil, "Acme Home Services is powered by ServiceTitan and covers Central Texas.")

	tool, ok := findArtifact(arts, "ServiceTitan")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactToolPlatform, tool.Type)
	assert.InDelta(t, 6.0, tool.Score, 1e-9)

	desc, ok := findArtifact(arts, "Acme Home Services")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactCompanyDescription, desc.Type)
	assert.Greater(t, desc.Score, 0.0)

	count := 0
	for _, a := range arts {
		if a.Text == "ServiceTitan" {
			count++
		}
	}
	assert.Equal(t, 1, count, "known-tool pass must not duplicate the brand mention")
}

func TestExtractAll_Rules(t *testing.T) {
	e := New()
	tests := []struct {
		name  string
		desc  string
		text  string
		typ   model.ArtifactType
		score float64
	}{
		{"brand partner", "Proud HubSpot partner since day one.", "HubSpot", model.ArtifactToolPlatform, 6.0},
		{"prefix certification", "Our techs are NATE-certified.", "NATE-certified", model.ArtifactServiceProgram, 4.0},
		{"named program", "Ask about our Comfort Club for priority service.", "Comfort Club", model.ArtifactServiceProgram, 4.5},
		{"known tool lowercase", "Invoices go through quickbooks every week.", "QuickBooks", model.ArtifactToolPlatform, 5.0},
		{"review count", "Rated 4.9 stars from 212 reviews on Google.", "4.9 stars from 212 reviews", model.ArtifactReviewSignal, 5.0},
		{"five star reviews", "Over 300 five-star reviews and counting.", "300 five-star reviews", model.ArtifactReviewSignal, 5.0},
		{"hiring", "We're hiring HVAC technicians in the metro.", "hiring HVAC technicians", model.ArtifactHiringSignal, 3.5},
		{"founded", "Family run and founded in 1987.", "since 1987", model.ArtifactYearsInBusiness, 3.0},
		{"city state", "Headquartered in Tulsa, OK with two shops.", "Tulsa, OK", model.ArtifactLocation, 2.0},
		{"serving region", "Serving the Twin Cities metro since forever.", "Twin Cities", model.ArtifactLocation, 2.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			arts := e.ExtractAll(nil, tc.desc)
			a, ok := findArtifact(arts, tc.text)
			require.True(t, ok, "want %q in %+v", tc.text, arts)
			assert.Equal(t, tc.typ, a.Type)
			assert.InDelta(t, tc.score, a.Score, 1e-9)
		})
	}
}

func TestExtractAll_RejectsNonBrandCertifications(t *testing.T) {
	e := New()
	arts := e.ExtractAll(nil, "Fully certified and insured. Serving Boise, ID.")
	for _, a := range arts {
		assert.NotEqual(t, model.ArtifactServiceProgram, a.Type, "unexpected %q", a.Text)
		assert.NotEqual(t, model.ArtifactToolPlatform, a.Type, "unexpected %q", a.Text)
	}
}

func TestExtractAll_CityStateRequiresStateCode(t *testing.T) {
	e := New()
	arts := e.ExtractAll(nil, "Offices in Springfield, QX only.")
	for _, a := range arts {
		assert.NotEqual(t, model.ArtifactLocation, a.Type)
	}
}

func TestExtractAll_DedupesCaseInsensitively(t *testing.T) {
	e := New()
	arts := e.ExtractAll(
		[]model.ScrapedElement{{Text: "Comfort Club", ElementType: model.ElementService, PageURL: "https://x.com"}},
		"Join the comfort club. Ask about our Comfort Club.",
	)
	n := 0
	for _, a := range arts {
		if dedupeKey(a.Text) == "comfort club" {
			n++
			assert.Equal(t, model.SourceWebsite, a.EvidenceSource)
		}
	}
	assert.Equal(t, 1, n)
}

func TestExtractAll_Idempotent(t *testing.T) {
	e := New()
	elements := []model.ScrapedElement{
		{Text: "Riverside Medical Center", ElementType: model.ElementClient},
	}
	desc := `"Comfort you can count on" from the Peak Comfort Club. Powered by Jobber. Serving Boise, ID since 2004.`

	first := e.ExtractAll(elements, desc)
	second := e.ExtractAll(elements, desc)
	assert.NotEmpty(t, first)
	assert.ElementsMatch(t, first, second)
}

func TestExtractSources_TagsSource(t *testing.T) {
	e := New()
	arts := e.ExtractSources(nil,
		Text{Body: "Powered by Jobber.", Source: model.SourceResearch, URL: "https://news.example.com/a"},
		Text{Body: "Powered by Jobber and Podium.", Source: model.SourceCompanyDescription},
	)

	jobber, ok := findArtifact(arts, "Jobber")
	require.True(t, ok)
	assert.Equal(t, model.SourceResearch, jobber.EvidenceSource)
	assert.Equal(t, "https://news.example.com/a", jobber.EvidenceURL)

	podium, ok := findArtifact(arts, "Podium")
	require.True(t, ok)
	assert.Equal(t, model.SourceCompanyDescription, podium.EvidenceSource)
}

func TestExtractFields(t *testing.T) {
	e := New()
	lead := model.Lead{
		CompanyName:  "Acme",
		Technologies: []string{"servicetitan", " ", "Acculynx"},
		Rating:       4.8,
		ReviewCount:  156,
		Keywords:     []string{"Since 1998", "heating"},
	}
	arts := e.ExtractFields(lead)

	st, ok := findArtifact(arts, "ServiceTitan")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactToolPlatform, st.Type)
	assert.Equal(t, model.SourceCSVField, st.EvidenceSource)

	_, ok = findArtifact(arts, "Acculynx")
	assert.True(t, ok)

	rev, ok := findArtifact(arts, "4.8 stars across 156 reviews")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactReviewSignal, rev.Type)

	yrs, ok := findArtifact(arts, "since 1998")
	require.True(t, ok)
	assert.Equal(t, model.ArtifactYearsInBusiness, yrs.Type)
	assert.Equal(t, model.SourceCSVField, yrs.EvidenceSource)
}

func TestAppendUnique(t *testing.T) {
	base := []model.Artifact{{Text: "Austin, TX", Type: model.ArtifactLocation}}
	out := AppendUnique(base,
		model.Artifact{Text: "austin, tx", Type: model.ArtifactLocation},
		model.Artifact{Text: "Jobber", Type: model.ArtifactToolPlatform},
	)
	require.Len(t, out, 2)
	assert.Equal(t, "Jobber", out[1].Text)
	assert.Len(t, base, 1)
}

func TestIsGenericElement(t *testing.T) {
	generic := []string{"Contact Us", "Welcome to Acme", "Call now", "555-123-4567", "USA", "Plumbers near me", "© 2024 Acme LLC", "Learn More"}
	for _, s := range generic {
		assert.True(t, isGenericElement(s), s)
	}
	specific := []string{"Riverside Medical Center", "Comfort Club Members", "24/7 Emergency Drain Service"}
	for _, s := range specific {
		assert.False(t, isGenericElement(s), s)
	}
}

func TestExtractAll_CommonNounToolsNeedBrandCasing(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		desc string
	}{
		{"lowercase intercom", "We install intercom systems, doorbells and cameras."},
		{"lowercase podium", "Our owner took the podium at the state trade show."},
		{"lowercase jobber", "We buy parts from a local jobber."},
		{"brand casing opening a sentence", "Intercom systems installed the same day."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, a := range e.ExtractAll(nil, tc.desc) {
				assert.NotEqual(t, model.ArtifactToolPlatform, a.Type, "unexpected tool %q", a.Text)
				assert.NotEqual(t, "Intercom", a.Text)
			}
		})
	}
}

func TestExtractAll_CommonNounToolInBrandCasing(t *testing.T) {
	e := New()
	arts := e.ExtractAll(nil, "Customers book and review us through Podium.")

	tool, ok := findArtifact(arts, "Podium")
	require.True(t, ok, "want Podium in %+v", arts)
	assert.Equal(t, model.ArtifactToolPlatform, tool.Type)
	assert.InDelta(t, 5.0, tool.Score, 1e-9)
}

func TestExtractAll_SentenceOpeningWordsAreNotNames(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		desc string
	}{
		{"description", "Family owned. Licensed plumbers."},
		{"question and exclamation", "Need help? Licensed! Bonded."},
		{"markdown heading", "## Powered\nLocal crews on every job."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Empty(t, e.ExtractAll(nil, tc.desc))
		})
	}
}

func TestExtractAll_SentenceOpeningNamesKept(t *testing.T) {
	e := New()
	tests := []struct {
		name string
		desc string
		want string
	}{
		{"acronym", "NATE techs on every truck.", "NATE"},
		{"mixed case", "ServiceNow handles our tickets.", "ServiceNow"},
		{"after filler word", "The Hendricks trust us with their boilers.", "Hendricks"},
		{"multi word", "Riverside Medical Center trusts our crews.", "Riverside Medical Center"},
		{"mid sentence", "We maintain boilers for Hendricks.", "Hendricks"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			arts := e.ExtractAll(nil, tc.desc)
			a, ok := findArtifact(arts, tc.want)
			require.True(t, ok, "want %q in %+v", tc.want, arts)
			assert.Equal(t, model.ArtifactCompanyDescription, a.Type)
		})
	}
}

func TestOpensSentence(t *testing.T) {
	tests := []struct {
		body string
		i    int
		want bool
	}{
		{"Family owned.", 0, true},
		{"Family owned. Licensed plumbers.", 14, true},
		{"Call now! Licensed.", 10, true},
		{"line one\n- Licensed", 11, true},
		{"serving Hendricks", 8, false},
		{"Smith, Jones", 7, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, opensSentence(tc.body, tc.i), "%q at %d", tc.body, tc.i)
	}
}
