package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/pkg/jina"
)

func newJinaServer(t *testing.T, status int, results []jina.SearchResult) jina.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(jina.SearchResponse{Code: 200, Data: results})
		}
	}))
	t.Cleanup(srv.Close)
	return jina.NewClient("key", jina.WithSearchBaseURL(srv.URL))
}

func TestJinaProvider_Lookup(t *testing.T) {
	client := newJinaServer(t, http.StatusOK, []jina.SearchResult{
		{Title: "Peak Comfort Systems | Dallas HVAC", URL: "https://peakcomfort.com/", Description: "Serving Dallas since 1998."},
		{Title: "Unrelated", URL: "https://other.com/", Description: "Nothing about them."},
		{Title: "Reviews", URL: "https://yelp.com/biz/peak", Content: "Peak Comfort Systems has 156 reviews."},
		{Title: "Empty", URL: "https://peakcomfort.com/blank"},
	})

	p := NewJinaProvider(client, 0)
	res, err := p.Lookup(context.Background(), Query{Company: "Peak Comfort Systems", Domain: "peakcomfort.com"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "jina", res.Provider)
	assert.Equal(t, "Serving Dallas since 1998.\n\nPeak Comfort Systems has 156 reviews.", res.Text)
	assert.Equal(t, []string{"https://peakcomfort.com/", "https://yelp.com/biz/peak"}, res.Sources)
	assert.Equal(t, "https://peakcomfort.com/", res.URL)
}

func TestJinaProvider_MaxResults(t *testing.T) {
	client := newJinaServer(t, http.StatusOK, []jina.SearchResult{
		{URL: "https://acme.com/a", Description: "one"},
		{URL: "https://acme.com/b", Description: "two"},
	})

	res, err := NewJinaProvider(client, 1).Lookup(context.Background(), Query{Company: "Acme", Domain: "acme.com"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "one", res.Text)
}

func TestJinaProvider_NoResults(t *testing.T) {
	client := newJinaServer(t, http.StatusUnprocessableEntity, nil)

	res, err := NewJinaProvider(client, 0).Lookup(context.Background(), Query{Company: "Acme"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestJinaProvider_Error(t *testing.T) {
	client := newJinaServer(t, http.StatusForbidden, nil)

	_, err := NewJinaProvider(client, 0).Lookup(context.Background(), Query{Company: "Acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jina search")
}
