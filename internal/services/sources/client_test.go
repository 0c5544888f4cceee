package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/models"
)

func newTestClient(opts ...ClientOption) *Client {
	return NewClient(common.GetLogger(), opts...)
}

func TestClient_FetchAPI(t *testing.T) {
	var gotQuery string
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"articles": [
			{"title": "Fed holds rates", "summary": "No change.", "url": "https://example.com/fed", "published_at": "2024-03-01T12:00:00Z"},
			{"title": "", "summary": "", "content": ""}
		]}`))
	}))
	defer server.Close()

	source := &models.NewsSource{
		Name:         "Test API",
		Kind:         models.SourceKindAPI,
		URL:          server.URL,
		APIKey:       "secret",
		APIKeyHeader: "X-Api-Key",
		Query:        "markets",
		QueryParam:   "q",
	}

	items, err := newTestClient().Fetch(context.Background(), source)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Fed holds rates", items[0].Title)
	assert.Equal(t, "secret", gotHeader)
	assert.Contains(t, gotQuery, "q=markets")
}

func TestClient_FetchAPI_SinceParam(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	source := &models.NewsSource{
		Name:          "Since API",
		Kind:          models.SourceKindAPI,
		URL:           server.URL,
		SinceParam:    "from",
		SinceFormat:   "unix",
		LastFetchedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	_, err := newTestClient().Fetch(context.Background(), source)

	require.NoError(t, err)
	assert.Contains(t, gotQuery, "from=1704067200")
}

func TestClient_FetchAPI_MissingKey(t *testing.T) {
	source := &models.NewsSource{
		Name:        "Keyed API",
		Kind:        models.SourceKindAPI,
		URL:         "https://example.com",
		APIKeyParam: "apikey",
	}

	_, err := newTestClient().Fetch(context.Background(), source)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_FetchStatusErrors(t *testing.T) {
	status := http.StatusInternalServerError
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	source := &models.NewsSource{Name: "Erroring", Kind: models.SourceKindAPI, URL: server.URL}
	client := newTestClient()

	_, err := client.Fetch(context.Background(), source)
	require.Error(t, err)
	assert.Equal(t, "http_500", err.Error())

	status = http.StatusTooManyRequests
	_, err = client.Fetch(context.Background(), source)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_FetchRSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	source := &models.NewsSource{Name: "Feed", Kind: models.SourceKindRSS, URL: server.URL}

	items, err := newTestClient().Fetch(context.Background(), source)

	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFilterSince(t *testing.T) {
	cutoff := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	items := []NormalizedItem{
		{Title: "old", PublishedAt: cutoff.Add(-time.Hour)},
		{Title: "edge", PublishedAt: cutoff},
		{Title: "new", PublishedAt: cutoff.Add(time.Hour)},
		{Title: "undated"},
	}

	kept := filterSince(items, cutoff)

	require.Len(t, kept, 3)
	assert.Equal(t, "edge", kept[0].Title)
	assert.Equal(t, "new", kept[1].Title)
	assert.Equal(t, "undated", kept[2].Title)

	// Zero cutoff keeps everything
	assert.Len(t, filterSince(items, time.Time{}), 4)
}

func TestClient_MaxItemsCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"a"},{"title":"b"},{"title":"c"}]`))
	}))
	defer server.Close()

	source := &models.NewsSource{Name: "Capped", Kind: models.SourceKindAPI, URL: server.URL}

	items, err := newTestClient(WithMaxItems(2)).Fetch(context.Background(), source)

	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSyntheticURL_Stable(t *testing.T) {
	source := &models.NewsSource{Name: "My Source!", URL: "https://example.com/feed"}
	published := time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC)

	first := SyntheticURL(source, "A headline", published)
	second := SyntheticURL(source, "A headline", published)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "https://synthetic.local/my-source/20240501091500-")

	other := SyntheticURL(source, "A different headline", published)
	assert.NotEqual(t, first, other)
}

func TestDedupeKey(t *testing.T) {
	withURL := NormalizedItem{Title: "t", URL: "https://example.com/a"}
	assert.Equal(t, "https://example.com/a", DedupeKey(withURL))

	published := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	noURL := NormalizedItem{Title: "t", PublishedAt: published}
	assert.Equal(t, DedupeKey(noURL), DedupeKey(NormalizedItem{Title: "t", PublishedAt: published}))
	assert.NotEqual(t, DedupeKey(noURL), DedupeKey(NormalizedItem{Title: "other", PublishedAt: published}))
}
