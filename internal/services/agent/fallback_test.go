package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/models"
)

func newBareService() *Service {
	return NewService(common.NewDefaultConfig(), common.GetLogger(), nil, nil, nil)
}

func sampleRecords(base time.Time) []*models.RawItem {
	return []*models.RawItem{
		{
			URL:         "https://news.example.com/rates",
			SourceName:  "WireDesk",
			Title:       "Fed signals interest rate cut as inflation cools",
			Summary:     "Policymakers opened the door to easing.",
			Content:     "The central bank said inflation is moving toward target.",
			PublishedAt: base.Add(-10 * time.Minute),
		},
		{
			URL:         "https://news.example.com/earnings",
			SourceName:  "MarketDaily",
			Title:       "Chipmaker lifts full-year revenue guidance",
			Summary:     "Earnings beat expectations.",
			PublishedAt: base.Add(-5 * time.Minute),
		},
		{
			URL:         "https://news.example.com/oil",
			SourceName:  "",
			Title:       "Oil spikes on supply chain disruption",
			PublishedAt: base.Add(-30 * time.Minute),
		},
	}
}

func TestRankByPublished(t *testing.T) {
	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	ranked := rankByPublished(sampleRecords(base))

	require.Len(t, ranked, 3)
	assert.Equal(t, "Chipmaker lifts full-year revenue guidance", ranked[0].Title)
	assert.Equal(t, "Fed signals interest rate cut as inflation cools", ranked[1].Title)
	assert.Equal(t, "Oil spikes on supply chain disruption", ranked[2].Title)
}

func TestComposeFallbackPayload(t *testing.T) {
	svc := newBareService()
	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC)

	payload := svc.composeFallbackPayload(sampleRecords(base), models.TimeframeHour, periodStart)

	assert.Equal(t, "Chipmaker lifts full-year revenue guidance", payload.Title)
	assert.Contains(t, payload.Body, "3 financially relevant developments were identified")
	assert.Contains(t, payload.Body, "MarketDaily reported Chipmaker lifts full-year revenue guidance.")
	assert.Contains(t, payload.Body, "newswire reported Oil spikes on supply chain disruption.")
	assert.Contains(t, payload.Body, "Taken together, these signals can influence rate expectations")

	assert.NotEmpty(t, payload.Summary)
	assert.LessOrEqual(t, len(payload.Summary), svc.config.Agent.SummaryClipChars)

	assert.Equal(t, []string{
		"https://news.example.com/earnings",
		"https://news.example.com/rates",
		"https://news.example.com/oil",
	}, payload.References)

	assert.GreaterOrEqual(t, payload.Importance, 1)
	assert.LessOrEqual(t, payload.Importance, 3)
	assert.NotEmpty(t, payload.ImportanceReason)
	assert.NotEmpty(t, payload.Impacts)
}

func TestComposeFallbackPayload_NoRecords(t *testing.T) {
	svc := newBareService()
	periodStart := time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC)

	payload := svc.composeFallbackPayload(nil, models.TimeframeHour, periodStart)

	assert.Contains(t, payload.Body, "0 financially relevant developments")
	assert.Contains(t, payload.Body, "restricted to market-moving records only")
	assert.Empty(t, payload.References)
	assert.Equal(t, "Financial Market Impact Update for 2024-05-06 11:00 UTC", payload.Title)
}

func TestComposeFallbackPayload_HighlightCap(t *testing.T) {
	svc := newBareService()
	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

	var records []*models.RawItem
	for i := 0; i < 8; i++ {
		records = append(records, &models.RawItem{
			SourceName:  "Feed",
			Title:       "Bond yields moved on treasury auction demand",
			PublishedAt: base.Add(time.Duration(-i) * time.Minute),
		})
	}

	payload := svc.composeFallbackPayload(records, models.TimeframeHour, base)
	highlights := strings.Count(payload.Body, "Feed reported")
	assert.Equal(t, svc.config.Agent.MaxFallbackHighlights, highlights)
}

func TestImpactSentence(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Fed weighs interest rate path", "rates markets"},
		{"Chipmaker earnings beat on revenue", "equity valuation"},
		{"Oil supply shock hits energy markets", "inflation expectations"},
		{"Treasury yield curve steepens", "Credit spreads"},
		{"Assorted macro chatter", "Cross-asset positioning"},
	}
	for _, tt := range tests {
		got := impactSentence(&models.RawItem{Title: tt.title})
		assert.Contains(t, got, tt.want, tt.title)
	}
}

func TestDeriveImpacts(t *testing.T) {
	records := []*models.RawItem{
		{Title: "Fed hints at rate cut as inflation slows"},
		{Title: "Mega-cap earnings beat sparks equity rally"},
		{Title: "Oil surges on sanction news"},
		{Title: "Credit rating downgrade pressures bond market"},
	}

	impacts := deriveImpacts(records)
	require.Len(t, impacts, 4)
	assert.Contains(t, impacts[0], "Rates and FX")
	assert.Contains(t, impacts[1], "Equities")
	assert.Contains(t, impacts[2], "Commodities")
	assert.Contains(t, impacts[3], "Credit")

	generic := deriveImpacts([]*models.RawItem{{Title: "quiet afternoon"}})
	require.Len(t, generic, 1)
	assert.Contains(t, generic[0], "Risk sentiment")
}
