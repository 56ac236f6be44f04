package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openers/internal/resilience"
	"github.com/sells-group/openers/pkg/jina"
)

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

func (m *mockJina) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

var longContent = "# Peak Comfort Systems\n\nHeating and cooling for North Texas homes. " +
	"Our NATE-certified technicians handle repairs, installs and the Comfort Club maintenance plan."

func TestJinaAdapter_Name(t *testing.T) {
	t.Parallel()
	adapter := NewJinaAdapter(&mockJina{})
	assert.Equal(t, "jina", adapter.Name())
	assert.True(t, adapter.Supports("https://example.com"))
}

func TestJinaAdapter_Scrape_Success(t *testing.T) {
	t.Parallel()
	m := &mockJina{}
	m.On("Read", mock.Anything, "https://peakcomfort.com/about").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{
			URL:     "https://peakcomfort.com/about",
			Title:   "About Peak Comfort",
			Content: longContent,
		},
	}, nil)

	result, err := NewJinaAdapter(m).Scrape(context.Background(), "https://peakcomfort.com/about")
	require.NoError(t, err)
	assert.Equal(t, "jina", result.Source)
	assert.Equal(t, "https://peakcomfort.com/about", result.Page.URL)
	assert.Equal(t, "About Peak Comfort", result.Page.Title)
	assert.Equal(t, 200, result.Page.StatusCode)
	assert.Empty(t, result.Page.HTML)
	m.AssertExpectations(t)
}

func TestJinaAdapter_Scrape_ClientError(t *testing.T) {
	t.Parallel()
	m := &mockJina{}
	m.On("Read", mock.Anything, "https://fail.com").Return(nil, errors.New("connection refused"))

	_, err := NewJinaAdapter(m).Scrape(context.Background(), "https://fail.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestJinaAdapter_Scrape_NeedsFallback(t *testing.T) {
	t.Parallel()
	m := &mockJina{}
	m.On("Read", mock.Anything, "https://blocked.com").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{URL: "https://blocked.com", Content: "short"},
	}, nil)

	_, err := NewJinaAdapter(m).Scrape(context.Background(), "https://blocked.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs fallback")
}

func TestJinaAdapter_CircuitOpensAfterFailures(t *testing.T) {
	t.Parallel()
	m := &mockJina{}
	m.On("Read", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Times(3)

	adapter := NewJinaAdapter(m)
	for i := 0; i < 3; i++ {
		_, err := adapter.Scrape(context.Background(), "https://fail.com")
		require.Error(t, err)
	}

	assert.False(t, adapter.Supports("https://fail.com"))
	_, err := adapter.Scrape(context.Background(), "https://fail.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.True(t, strings.Contains(err.Error(), "circuit breaker open"))
	m.AssertNumberOfCalls(t, "Read", 3)
}

func TestNeedsFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *jina.ReadResponse
		want bool
	}{
		{
			name: "nil response",
			resp: nil,
			want: true,
		},
		{
			name: "non-200 code",
			resp: &jina.ReadResponse{Code: 403},
			want: true,
		},
		{
			name: "short content",
			resp: &jina.ReadResponse{
				Code: 200,
				Data: jina.ReadData{Content: "too short"},
			},
			want: true,
		},
		{
			name: "challenge signature in short content",
			resp: &jina.ReadResponse{
				Code: 200,
				Data: jina.ReadData{
					Content: "Checking your browser before accessing this site. Please enable JavaScript and cookies to continue.",
				},
			},
			want: true,
		},
		{
			name: "cloudflare in short content",
			resp: &jina.ReadResponse{
				Code: 200,
				Data: jina.ReadData{
					Content: "Attention Required! Cloudflare security check. Enable JavaScript and cookies to continue browsing this site.",
				},
			},
			want: true,
		},
		{
			name: "valid long content",
			resp: &jina.ReadResponse{
				Code: 200,
				Data: jina.ReadData{
					Content: "This is valid content that is long enough to pass the minimum length check. " +
						"It does not contain any challenge signatures and should be considered valid content for extraction. " +
						"Adding more text to make sure we are well over the 100 character minimum threshold.",
				},
			},
			want: false,
		},
		{
			name: "challenge signature in long content over 1000 chars is ok",
			resp: &jina.ReadResponse{
				Code: 200,
				Data: jina.ReadData{
					Content: makeLongContent("This page mentions cloudflare somewhere but has lots of real content."),
				},
			},
			want: false,
		},
		{
			name: "code 0 is acceptable",
			resp: &jina.ReadResponse{
				Code: 0,
				Data: jina.ReadData{
					Content: "This is valid content that is long enough to pass the minimum length check. " +
						"More text here to fill up the 100 character requirement for the content to be considered valid.",
				},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, needsFallback(tt.resp))
		})
	}
}

// makeLongContent creates a string > 1000 chars that includes the given prefix.
func makeLongContent(prefix string) string {
	content := prefix
	for len(content) < 1100 {
		content += " This is filler content to make the string longer than the 1000 character threshold."
	}
	return content
}
