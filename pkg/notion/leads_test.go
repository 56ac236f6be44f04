package notion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/internal/model"
)

func rt(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func TestLeadFromPage(t *testing.T) {
	page := notionapi.Page{
		ID: "page-1",
		Properties: notionapi.Properties{
			"Name":         &notionapi.TitleProperty{Title: rt("  Peak Comfort HVAC ")},
			"URL":          &notionapi.URLProperty{URL: "https://peakcomfort.com "},
			"Description":  &notionapi.RichTextProperty{RichText: rt("Family-owned HVAC contractor.")},
			"Location":     &notionapi.RichTextProperty{RichText: rt("Austin, TX")},
			"SalesforceID": &notionapi.RichTextProperty{RichText: rt("001ABC")},
			"Technologies": &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "ServiceTitan"}, {Name: " "}}},
			"Keywords":     &notionapi.RichTextProperty{RichText: rt("heat pumps, ductless")},
			"Rating":       &notionapi.NumberProperty{Number: 4.8},
			"Reviews":      &notionapi.NumberProperty{Number: 212},
		},
	}

	l := LeadFromPage(page)
	assert.Equal(t, "Peak Comfort HVAC", l.CompanyName)
	assert.Equal(t, "https://peakcomfort.com", l.SiteURL)
	assert.Equal(t, "Family-owned HVAC contractor.", l.Description)
	assert.Equal(t, "Austin, TX", l.Location)
	assert.Equal(t, "001ABC", l.SalesforceID)
	assert.Equal(t, []string{"ServiceTitan"}, l.Technologies)
	assert.Equal(t, []string{"heat pumps", "ductless"}, l.Keywords)
	assert.Equal(t, 4.8, l.Rating)
	assert.Equal(t, 212, l.ReviewCount)
	assert.Equal(t, "page-1", l.NotionPageID)
	assert.Equal(t, "notion-page-1", l.SourceID)
}

func TestLeadFromPage_MissingProperties(t *testing.T) {
	l := LeadFromPage(notionapi.Page{ID: "p2", Properties: notionapi.Properties{
		"Rating": &notionapi.NumberProperty{Number: 9},
	}})
	assert.Empty(t, l.CompanyName)
	assert.Empty(t, l.SiteURL)
	assert.Nil(t, l.Technologies)
	assert.Zero(t, l.Rating)
	assert.Equal(t, "p2", l.NotionPageID)
}

func TestWriteResult(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	res := model.Result{
		Line:           "Saw your work with Riverside Medical Center and had to reach out.",
		ArtifactType:   model.ArtifactClientOrProject,
		ArtifactText:   "Riverside Medical Center",
		EvidenceURL:    "https://peakcomfort.com/projects",
		ConfidenceTier: model.TierS,
		Attempts:       1,
	}

	mc.On("UpdatePage", ctx, "page-1", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		status, ok := req.Properties["Status"].(notionapi.StatusProperty)
		if !ok || status.Status.Name != StatusComplete {
			return false
		}
		line, ok := req.Properties["Opening Line"].(notionapi.RichTextProperty)
		if !ok || line.RichText[0].Text.Content != res.Line {
			return false
		}
		tier, ok := req.Properties["Confidence"].(notionapi.SelectProperty)
		if !ok || tier.Select.Name != "S" {
			return false
		}
		_, hasURL := req.Properties["Evidence URL"]
		return hasURL
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()

	require.NoError(t, WriteResult(ctx, mc, "page-1", res))
	mc.AssertExpectations(t)
}

func TestWriteResult_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("UpdatePage", ctx, "page-1", mock.Anything).Return(nil, assert.AnError).Once()

	err := WriteResult(ctx, mc, "page-1", model.Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: write result to page page-1")
}

func TestMarkFailed(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	long := errors.New(strings.Repeat("x", 500))

	mc.On("UpdatePage", ctx, "page-9", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		status := req.Properties["Status"].(notionapi.StatusProperty)
		msg := req.Properties["Error"].(notionapi.RichTextProperty)
		return status.Status.Name == StatusFailed && len(msg.RichText[0].Text.Content) == 200
	})).Return(&notionapi.Page{}, nil).Once()

	require.NoError(t, MarkFailed(ctx, mc, "page-9", long))
	mc.AssertExpectations(t)
}

func TestImportLeads(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	leads := []model.Lead{
		{CompanyName: `"Peak Comfort HVAC"`, SiteURL: "https://peakcomfort.com", Location: "Austin, TX", Technologies: []string{"ServiceTitan", "Podium"}},
		{CompanyName: "Summit Plumbing"},
	}

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		title := req.Properties["Name"].(notionapi.TitleProperty)
		return title.Title[0].Text.Content == "Peak Comfort HVAC" &&
			req.Parent.DatabaseID == "db-1" &&
			req.Properties["Technologies"].(notionapi.RichTextProperty).RichText[0].Text.Content == "ServiceTitan, Podium"
	})).Return(&notionapi.Page{ID: "new-1"}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		_, hasURL := req.Properties["URL"]
		status := req.Properties["Status"].(notionapi.StatusProperty)
		return !hasURL && status.Status.Name == StatusQueued
	})).Return(&notionapi.Page{ID: "new-2"}, nil).Once()

	n, err := ImportLeads(ctx, mc, "db-1", leads)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	mc.AssertExpectations(t)
}

func TestImportLeads_CreateError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	mc.On("CreatePage", ctx, mock.Anything).Return(&notionapi.Page{}, nil).Once()
	mc.On("CreatePage", ctx, mock.Anything).Return(nil, assert.AnError).Once()

	n, err := ImportLeads(ctx, mc, "db-1", []model.Lead{{CompanyName: "A"}, {CompanyName: "B"}, {CompanyName: "C"}})
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "notion: create page for B")
}

func TestImportLeads_ContextCancelled(t *testing.T) {
	mc := new(MockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := ImportLeads(ctx, mc, "db-1", []model.Lead{{CompanyName: "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Zero(t, n)
}

func TestRichTextTruncates(t *testing.T) {
	p := richText(strings.Repeat("a", maxRichText+10))
	assert.Len(t, p.RichText[0].Text.Content, maxRichText)
}
