//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/internal/model"
	sfpkg "github.com/sells-group/openers/pkg/salesforce"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Source:    "notion",
			Status:    model.RunStatusComplete,
			Summary:   model.RunSummary{Total: 10, TierS: 4, TierA: 3, TierB: 1, Fallback: 1, Errors: 1},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Source:    "csv:a-very-long-grata-export-file-name.csv",
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "notion")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "4/3/1/1")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "csv:a-very-long-grata-expor...")
}

func TestComputeRunStats(t *testing.T) {
	runs := []model.Run{
		{Status: model.RunStatusComplete, Summary: model.RunSummary{Total: 4, TierS: 2, TierA: 1, Fallback: 1}},
		{Status: model.RunStatusFailed, Summary: model.RunSummary{Total: 2, Errors: 2}},
		{Status: model.RunStatusRunning, Summary: model.RunSummary{Total: 1, TierB: 1}},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, 1, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, model.RunSummary{Total: 7, TierS: 2, TierA: 1, TierB: 1, Fallback: 1, Errors: 2}, s.Leads)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{
		Runs:     2,
		Complete: 2,
		Leads:    model.RunSummary{Total: 4, TierS: 2, Fallback: 1, TierA: 1},
		DLQ:      3,
	})

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "2 (50%)")
	assert.Contains(t, out, "1 (25%)")
	assert.Contains(t, out, "Parked writebacks:")
	assert.True(t, strings.Contains(out, "3"))
}

func TestFormatRunStats_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{})
	assert.NotContains(t, buf.String(), "%")
}

func TestRunsSince(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{ID: "new", CreatedAt: now},
		{ID: "old", CreatedAt: now.Add(-48 * time.Hour)},
	}
	got := runsSince(runs, now.Add(-24*time.Hour))
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}

func TestFormatResultsTable(t *testing.T) {
	var buf bytes.Buffer
	formatResultsTable(&buf, []model.Result{{
		ID:             "0f1e2d3c-aaaa-bbbb",
		Company:        "Acme Roofing and Restoration of Greater Austin",
		Line:           "Noticed your team runs on ServiceTitan.",
		ArtifactType:   model.ArtifactToolPlatform,
		ConfidenceTier: model.TierS,
		Mode:           model.ModeTemplate,
	}})

	out := buf.String()
	assert.Contains(t, out, "0f1e2d3c")
	assert.Contains(t, out, "Acme Roofing and Restorat...")
	assert.Contains(t, out, "TOOL_PLATFORM")
	assert.Contains(t, out, "Noticed your team runs on ServiceTitan.")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab...", clip("abcdef", 5))
	assert.Equal(t, "Café...", clip("Café Olé Olé", 7))
}

func TestRunLead(t *testing.T) {
	runCompany, runURL, runLocation = "  Acme Roofing ", " https://acme.com ", "Austin, TX"
	runTech, runSFID = []string{"ServiceTitan"}, "001A"
	t.Cleanup(func() {
		runCompany, runURL, runLocation, runTech, runSFID = "", "", "", nil, ""
	})

	l := runLead()
	assert.Equal(t, "Acme Roofing", l.CompanyName)
	assert.Equal(t, "https://acme.com", l.SiteURL)
	assert.Equal(t, "Austin, TX", l.Location)
	assert.Equal(t, []string{"ServiceTitan"}, l.Technologies)
	assert.Equal(t, "001A", l.SalesforceID)
}

func TestFillFromAccount(t *testing.T) {
	sf := &mockSFClient{
		queryFn: func(_ context.Context, soql string, out any) error {
			assert.Contains(t, soql, "Id = '001A'")
			*out.(*[]sfpkg.Account) = []sfpkg.Account{{
				ID: "001A", Name: "Acme Roofing", Website: "acme.com", Industry: "Roofing",
				Description: "Storm repair crews", BillingCity: "Austin", BillingState: "TX",
			}}
			return nil
		},
	}

	l, err := fillFromAccount(context.Background(), sf, model.Lead{
		CompanyName: "Acme Roofing", Location: "Round Rock, TX", SalesforceID: "001A",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com", l.SiteURL)
	assert.Equal(t, "Storm repair crews", l.Description)
	assert.Equal(t, "Round Rock, TX", l.Location, "flag value wins over the account")
	assert.Equal(t, []string{"Roofing"}, l.Keywords)
	assert.Equal(t, "001A", l.SalesforceID)
}

func TestFillFromAccount_Missing(t *testing.T) {
	_, err := fillFromAccount(context.Background(), &mockSFClient{}, model.Lead{CompanyName: "Acme", SalesforceID: "001Z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce account 001Z not found")

	failing := &mockSFClient{queryFn: func(context.Context, string, any) error { return errors.New("session expired") }}
	_, err = fillFromAccount(context.Background(), failing, model.Lead{CompanyName: "Acme", SalesforceID: "001A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run: load salesforce account")
}

func TestPrintLeadsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLeadsJSON(&buf, []model.Lead{{CompanyName: "Acme", SourceID: "row-1"}}))

	var got []model.Lead
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].CompanyName)
	assert.Equal(t, "row-1", got[0].SourceID)
}
