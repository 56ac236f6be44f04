package notion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/internal/model"
)

// Lead database status values.
const (
	StatusQueued   = "Queued"
	StatusComplete = "Complete"
	StatusFailed   = "Failed"
)

// maxRichText is Notion's limit on a single rich text content block.
const maxRichText = 2000

// LeadFromPage converts a lead database page to a model.Lead. Missing
// properties leave the corresponding field empty.
func LeadFromPage(page notionapi.Page) model.Lead {
	l := model.Lead{
		NotionPageID: string(page.ID),
		SourceID:     "notion-" + string(page.ID),
	}

	if prop, ok := page.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			for _, rt := range tp.Title {
				l.CompanyName += rt.PlainText
			}
		}
	}

	if prop, ok := page.Properties["URL"]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok {
			l.SiteURL = up.URL
		}
	}

	l.Description = plainText(page.Properties["Description"])
	l.Location = plainText(page.Properties["Location"])
	l.SalesforceID = plainText(page.Properties["SalesforceID"])
	l.Technologies = listValues(page.Properties["Technologies"])
	l.Keywords = listValues(page.Properties["Keywords"])

	if prop, ok := page.Properties["Rating"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok && np.Number > 0 && np.Number <= 5 {
			l.Rating = np.Number
		}
	}
	if prop, ok := page.Properties["Reviews"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok && np.Number > 0 {
			l.ReviewCount = int(np.Number)
		}
	}

	l.CompanyName = strings.TrimSpace(l.CompanyName)
	l.SiteURL = strings.TrimSpace(l.SiteURL)
	return l
}

func plainText(prop notionapi.Property) string {
	var b strings.Builder
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		for _, rt := range p.RichText {
			b.WriteString(rt.PlainText)
		}
	case *notionapi.TitleProperty:
		for _, rt := range p.Title {
			b.WriteString(rt.PlainText)
		}
	case *notionapi.SelectProperty:
		b.WriteString(p.Select.Name)
	}
	return strings.TrimSpace(b.String())
}

// listValues reads a multi-select, or splits a rich text value on commas.
func listValues(prop notionapi.Property) []string {
	if ms, ok := prop.(*notionapi.MultiSelectProperty); ok {
		out := make([]string, 0, len(ms.MultiSelect))
		for _, o := range ms.MultiSelect {
			if name := strings.TrimSpace(o.Name); name != "" {
				out = append(out, name)
			}
		}
		return out
	}
	text := plainText(prop)
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func richText(s string) notionapi.RichTextProperty {
	if len(s) > maxRichText {
		s = s[:maxRichText]
	}
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}

// WriteResult records a personalization result on the lead page and marks
// it Complete.
func WriteResult(ctx context.Context, c Client, pageID string, r model.Result) error {
	now := notionapi.Date(time.Now())
	props := notionapi.Properties{
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: StatusComplete},
		},
		"Opening Line": richText(r.Line),
		"Artifact":     richText(r.ArtifactText),
		"Artifact Type": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(r.ArtifactType)},
		},
		"Confidence": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(r.ConfidenceTier)},
		},
		"Attempts": notionapi.NumberProperty{
			Number: float64(r.Attempts),
		},
		"Last Personalized": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &now},
		},
	}
	if r.EvidenceURL != "" {
		props["Evidence URL"] = notionapi.URLProperty{URL: r.EvidenceURL}
	}

	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("notion: write result to page %s", pageID))
	}
	return nil
}

// MarkFailed sets the lead page status to Failed.
func MarkFailed(ctx context.Context, c Client, pageID string, cause error) error {
	now := notionapi.Date(time.Now())
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{Name: StatusFailed},
			},
			"Error": richText(msg),
			"Last Personalized": notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &now},
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("notion: update page %s to Failed", pageID))
	}
	return nil
}

// ImportLeads creates a Queued page for each lead. Pacing comes from the
// client's rate limiter. Returns the number of pages created.
func ImportLeads(ctx context.Context, c Client, dbID string, leads []model.Lead) (int, error) {
	created := 0
	for _, l := range leads {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "notion: import leads cancelled")
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: leadProperties(l),
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, fmt.Sprintf("notion: create page for %s", l.CompanyName))
		}
		created++
	}
	return created, nil
}

// leadProperties converts a lead to page properties. Empty fields are
// omitted and Status is always Queued.
func leadProperties(l model.Lead) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: strings.Trim(strings.TrimSpace(l.CompanyName), `"`)}},
			},
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: StatusQueued},
		},
	}
	if l.SiteURL != "" {
		props["URL"] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: l.SiteURL}
	}
	if l.Description != "" {
		props["Description"] = richText(l.Description)
	}
	if l.Location != "" {
		props["Location"] = richText(l.Location)
	}
	if l.SalesforceID != "" {
		props["SalesforceID"] = richText(l.SalesforceID)
	}
	if len(l.Technologies) > 0 {
		props["Technologies"] = richText(strings.Join(l.Technologies, ", "))
	}
	if len(l.Keywords) > 0 {
		props["Keywords"] = richText(strings.Join(l.Keywords, ", "))
	}
	if l.Rating > 0 {
		props["Rating"] = notionapi.NumberProperty{Number: l.Rating}
	}
	if l.ReviewCount > 0 {
		props["Reviews"] = notionapi.NumberProperty{Number: float64(l.ReviewCount)}
	}
	return props
}
