package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Markets Wire</title>
    <item>
      <title>Bond yields jump</title>
      <description>Yields rose after the auction.</description>
      <content:encoded><![CDATA[Long form text about the bond auction.]]></content:encoded>
      <link>https://example.com/bonds</link>
      <pubDate>Mon, 01 Jan 2024 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>https://example.com/second</link>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Econ Feed</title>
  <entry>
    <title>Inflation print surprises</title>
    <summary>CPI came in above consensus.</summary>
    <updated>2024-02-14T08:30:00Z</updated>
    <link rel="alternate" href="https://example.com/cpi"/>
  </entry>
</feed>`

func TestParseFeed_RSS(t *testing.T) {
	items := ParseFeed(sampleRSS)

	require.Len(t, items, 2)

	assert.Equal(t, "Bond yields jump", items[0].Title)
	assert.Equal(t, "Yields rose after the auction.", items[0].Summary)
	assert.Equal(t, "Long form text about the bond auction.", items[0].Content)
	assert.Equal(t, "https://example.com/bonds", items[0].URL)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), items[0].PublishedAt)

	// Missing description and pubDate fall back cleanly
	assert.Equal(t, "Second story", items[1].Content)
	assert.True(t, items[1].PublishedAt.IsZero())
}

func TestParseFeed_Atom(t *testing.T) {
	items := ParseFeed(sampleAtom)

	require.Len(t, items, 1)
	assert.Equal(t, "Inflation print surprises", items[0].Title)
	assert.Equal(t, "CPI came in above consensus.", items[0].Content)
	assert.Equal(t, "https://example.com/cpi", items[0].URL)
	assert.Equal(t, time.Date(2024, 2, 14, 8, 30, 0, 0, time.UTC), items[0].PublishedAt)
}

func TestParseFeed_Malformed(t *testing.T) {
	assert.Nil(t, ParseFeed("not xml at all"))
	assert.Nil(t, ParseFeed("<rss><channel><item><title>unclosed"))
}

func TestParseProviderTime(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  time.Time
	}{
		{"nil", nil, time.Time{}},
		{"epoch seconds", float64(1704067200), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch millis", int64(1704067200000), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch string", "1704067200", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"compact stamp", "20240105T133000", time.Date(2024, 1, 5, 13, 30, 0, 0, time.UTC)},
		{"rfc3339", "2024-03-01T12:00:00Z", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", "2024-03-01T12:00:00+02:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc1123z", "Fri, 01 Mar 2024 12:00:00 +0000", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"space separated", "2024-03-01 12:00:00", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"date only", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"garbage", "next tuesday", time.Time{}},
		{"empty string", "   ", time.Time{}},
		{"unsupported type", []string{"x"}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProviderTime(tt.value))
		})
	}
}
