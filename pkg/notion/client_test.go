package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

// redirect sends every request to srv regardless of the API host.
type redirect struct{ target *url.URL }

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...ClientOption) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	opts = append([]ClientOption{WithRateLimit(0), WithHTTPClient(&http.Client{Transport: redirect{target: u}})}, opts...)
	return NewClient("secret_test", opts...)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNotionClient_QueryQueuedLeads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db-leads/query", r.URL.Path)
		assert.Equal(t, "Bearer secret_test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Contains(t, string(body), `"equals":"Queued"`)
		assert.Contains(t, string(body), `"timestamp":"created_time"`)

		_, _ = w.Write([]byte(`{"object":"list","results":[{"object":"page","id":"lead-1","properties":{}}],"has_more":false}`))
	})

	resp, err := c.QueryDatabase(context.Background(), "db-leads", queuedFilter())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, notionapi.ObjectID("lead-1"), resp.Results[0].ID)
}

func TestNotionClient_UpdatePageError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/pages/page-9", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"Opening Line is not a property"}`))
	})

	page, err := c.UpdatePage(context.Background(), "page-9", &notionapi.PageUpdateRequest{})
	require.Error(t, err)
	assert.Nil(t, page)
	assert.Contains(t, err.Error(), "notion: update page page-9")
	assert.Contains(t, err.Error(), "Opening Line is not a property")
}

func TestNotionClient_RateLimitHonoursContext(t *testing.T) {
	var hits int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
	}, WithRateLimit(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")
	assert.Zero(t, hits)
}

func TestNewClient_Defaults(t *testing.T) {
	c, ok := NewClient("secret_test").(*notionClient)
	require.True(t, ok)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 3.0, float64(c.limiter.Limit()), 1e-9)

	c, ok = NewClient("secret_test", WithRateLimit(0), WithHTTPClient(nil)).(*notionClient)
	require.True(t, ok)
	assert.Nil(t, c.limiter)
	assert.NotNil(t, c.inner)
}
