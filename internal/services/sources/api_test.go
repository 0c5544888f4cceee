package sources

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, text string) interface{} {
	t.Helper()
	var data interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &data))
	return data
}

func TestExtractCandidates_TopLevelList(t *testing.T) {
	data := decodeJSON(t, `[{"title": "one"}, {"title": "two"}, "not an object"]`)

	candidates := ExtractCandidates(data)

	require.Len(t, candidates, 2)
	assert.Equal(t, "one", candidates[0]["title"])
	assert.Equal(t, "two", candidates[1]["title"])
}

func TestExtractCandidates_Envelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"articles", `{"articles": [{"title": "a"}]}`, 1},
		{"data", `{"data": [{"title": "a"}, {"title": "b"}]}`, 2},
		{"results", `{"results": [{"headline": "a"}]}`, 1},
		{"releases", `{"releases": [{"name": "a"}]}`, 1},
		{"nested feed", `{"feed": {"entries": "nope", "items": [{"title": "a"}]}}`, 1},
		{"nested data results", `{"data": {"results": [{"title": "a"}, {"title": "b"}]}}`, 2},
		{"empty object", `{"status": "ok"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := ExtractCandidates(decodeJSON(t, tt.body))
			assert.Len(t, candidates, tt.want)
		})
	}
}

func TestExtractCandidates_SingleItemFallback(t *testing.T) {
	data := decodeJSON(t, `{"headline": "standalone story", "url": "https://example.com/a"}`)

	candidates := ExtractCandidates(data)

	require.Len(t, candidates, 1)
	assert.Equal(t, "standalone story", candidates[0]["headline"])
}

func TestNormalizeEntry_FieldAliases(t *testing.T) {
	entry := map[string]interface{}{
		"headline":       "Rate decision looms",
		"description":    "Central bank meets this week.",
		"body":           "Full text of the story.",
		"link":           "https://example.com/story",
		"time_published": "20240105T133000",
	}

	item := NormalizeEntry(entry)

	assert.Equal(t, "Rate decision looms", item.Title)
	assert.Equal(t, "Central bank meets this week.", item.Summary)
	assert.Equal(t, "Full text of the story.", item.Content)
	assert.Equal(t, "https://example.com/story", item.URL)
	assert.Equal(t, time.Date(2024, 1, 5, 13, 30, 0, 0, time.UTC), item.PublishedAt)
}

func TestNormalizeEntry_ContentFallsBackToSummaryThenTitle(t *testing.T) {
	withSummary := NormalizeEntry(map[string]interface{}{
		"title":   "T",
		"summary": "S",
	})
	assert.Equal(t, "S", withSummary.Content)

	titleOnly := NormalizeEntry(map[string]interface{}{"title": "T"})
	assert.Equal(t, "T", titleOnly.Content)
}

func TestNormalizeEntry_URLFromLinksList(t *testing.T) {
	entry := map[string]interface{}{
		"title": "T",
		"links": []interface{}{
			map[string]interface{}{"rel": "alternate", "href": "https://example.com/via-links"},
		},
	}

	item := NormalizeEntry(entry)
	assert.Equal(t, "https://example.com/via-links", item.URL)
}

func TestNormalizeEntry_EpochPublished(t *testing.T) {
	seconds := NormalizeEntry(map[string]interface{}{
		"title": "T",
		"date":  float64(1704067200),
	})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), seconds.PublishedAt)

	millis := NormalizeEntry(map[string]interface{}{
		"title": "T",
		"date":  float64(1704067200000),
	})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), millis.PublishedAt)
}

func TestNormalizedItem_BestText(t *testing.T) {
	full := NormalizedItem{Title: "t", Summary: "s", Content: "c"}
	assert.Equal(t, "c", full.BestText())

	noContent := NormalizedItem{Title: "t", Summary: "s"}
	assert.Equal(t, "s", noContent.BestText())

	titleOnly := NormalizedItem{Title: "t"}
	assert.Equal(t, "t", titleOnly.BestText())

	assert.True(t, NormalizedItem{}.Empty())
	assert.False(t, titleOnly.Empty())
}
