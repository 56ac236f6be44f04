//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/internal/config"
	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/store"
	"github.com/sells-group/openers/pkg/notion"
	sfpkg "github.com/sells-group/openers/pkg/salesforce"
)

// setTestConfig installs a minimal config for the duration of the test.
func setTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
		Salesforce: config.SalesforceConfig{
			LineField:     "Opening_Line__c",
			TierField:     "Opening_Line_Tier__c",
			ArtifactField: "Opening_Line_Artifact__c",
		},
		Batch: config.BatchConfig{Concurrency: 4, DLQMaxRetries: 5},
	}
	t.Cleanup(func() { cfg = prev })
}

// newTestEnv returns a pipeline env over a migrated temp-dir SQLite store.
func newTestEnv(t *testing.T, p personalizer) *pipelineEnv {
	t.Helper()
	setTestConfig(t)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	return &pipelineEnv{Store: st, Personalizer: p}
}

// fakePersonalizer returns a canned result per company, or err for the
// companies listed in fail.
type fakePersonalizer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakePersonalizer) Personalize(_ context.Context, lead model.Lead) (model.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lead.CompanyName)
	f.mu.Unlock()

	if err := f.fail[lead.CompanyName]; err != nil {
		return model.Result{}, err
	}
	return model.Result{
		Company:        lead.CompanyName,
		Line:           "Noticed your team runs on ServiceTitan.",
		ArtifactType:   model.ArtifactToolPlatform,
		ArtifactText:   "ServiceTitan",
		EvidenceSource: model.SourceCSVField,
		ConfidenceTier: model.TierS,
		Mode:           model.ModeTemplate,
		Attempts:       1,
		GeneratedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakePersonalizer) called() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// mockNotionClient records UpdatePage calls.
type mockNotionClient struct {
	notion.Client

	mu        sync.Mutex
	updates   []string
	updateErr error
}

func (m *mockNotionClient) UpdatePage(_ context.Context, pageID string, _ *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, pageID)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *mockNotionClient) updated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.updates...)
}

// mockSFClient routes each Client method to an optional func field.
type mockSFClient struct {
	queryFn            func(ctx context.Context, soql string, out any) error
	updateOneFn        func(ctx context.Context, sObjectName, id string, fields map[string]any) error
	updateCollectionFn func(ctx context.Context, sObjectName string, records []sfpkg.CollectionRecord) ([]sfpkg.CollectionResult, error)
	describeFn         func(ctx context.Context, name string) (*sfpkg.SObjectDescription, error)

	mu         sync.Mutex
	updatedIDs []string
}

func (m *mockSFClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func (m *mockSFClient) UpdateOne(ctx context.Context, sObjectName, id string, fields map[string]any) error {
	m.mu.Lock()
	m.updatedIDs = append(m.updatedIDs, id)
	m.mu.Unlock()
	if m.updateOneFn != nil {
		return m.updateOneFn(ctx, sObjectName, id, fields)
	}
	return nil
}

func (m *mockSFClient) UpdateCollection(ctx context.Context, sObjectName string, records []sfpkg.CollectionRecord) ([]sfpkg.CollectionResult, error) {
	if m.updateCollectionFn != nil {
		return m.updateCollectionFn(ctx, sObjectName, records)
	}
	out := make([]sfpkg.CollectionResult, len(records))
	for i, r := range records {
		out[i] = sfpkg.CollectionResult{ID: r.ID, Success: true}
	}
	return out, nil
}

func (m *mockSFClient) DescribeSObject(ctx context.Context, name string) (*sfpkg.SObjectDescription, error) {
	if m.describeFn != nil {
		return m.describeFn(ctx, name)
	}
	return &sfpkg.SObjectDescription{Name: name}, nil
}

func (m *mockSFClient) updated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.updatedIDs...)
}
