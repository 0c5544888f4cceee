package prices

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePayload(t *testing.T, text string) interface{} {
	t.Helper()
	var data interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &data))
	return data
}

func TestParsePricePayload_DirectQuote(t *testing.T) {
	data := decodePayload(t, `{"price": 101.5, "volume": 3200, "timestamp": 1704067200}`)

	items := parsePricePayload(data, "")
	require.Len(t, items, 1)
	assert.True(t, items[0].hasPrice)
	assert.Equal(t, 101.5, items[0].price)
	assert.Equal(t, 3200.0, items[0].volume)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), items[0].published)
}

func TestParsePricePayload_ObservationsList(t *testing.T) {
	data := decodePayload(t, `{"observations": [
		{"date": "2024-05-01", "value": "4.25"},
		{"date": "2024-05-02", "value": "."},
		{"date": "2024-05-03", "value": "4.40"}
	]}`)

	items := parsePricePayload(data, "")
	require.Len(t, items, 1)
	assert.Equal(t, 4.40, items[0].price)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), items[0].published)
}

func TestParsePricePayload_ListEnvelopes(t *testing.T) {
	data := decodePayload(t, `{"results": [
		{"c": 5123.4, "t": 1704067200000},
		{"note": "no price here"},
		{"close": "5,130.25"}
	]}`)

	items := parsePricePayload(data, "")
	require.Len(t, items, 2)
	assert.Equal(t, 5123.4, items[0].price)
	assert.Equal(t, 5130.25, items[1].price)
}

func TestParsePricePayload_NestedSpot(t *testing.T) {
	data := decodePayload(t, `{"bitcoin": {"usd": 64123.55}}`)

	items := parsePricePayload(data, "")
	require.Len(t, items, 1)
	assert.Equal(t, 64123.55, items[0].price)
	assert.True(t, items[0].published.IsZero())
}

func TestParsePricePayload_TopLevelList(t *testing.T) {
	data := decodePayload(t, `[{"last": 1.0845}, {"yield": 4.31}]`)

	items := parsePricePayload(data, "")
	require.Len(t, items, 2)
	assert.Equal(t, 1.0845, items[0].price)
	assert.Equal(t, 4.31, items[1].price)
}

func TestParsePricePayload_FallbackRawText(t *testing.T) {
	data := decodePayload(t, `{"status": "ok"}`)

	items := parsePricePayload(data, `{"status": "ok"}`)
	require.Len(t, items, 1)
	assert.False(t, items[0].hasPrice)
	assert.Contains(t, items[0].text, "ok")
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		pattern string
		scale   float64
		want    float64
		ok      bool
	}{
		{name: "default regex with separators", text: "Gold settles at 2,315.80 per ounce", want: 2315.80, ok: true},
		{name: "named group", text: "rate now 5.33%", pattern: `rate now (?P<price>\d+\.\d+)%`, want: 5.33, ok: true},
		{name: "scaled", text: "index at 512", scale: 0.01, want: 5.12, ok: true},
		{name: "no match", text: "no numbers here", ok: false},
		{name: "empty text", text: "   ", ok: false},
		{name: "invalid pattern falls out", text: "123", pattern: "(", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractPrice(tt.text, tt.pattern, tt.scale)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.0001)
			}
		})
	}
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  float64
		ok    bool
	}{
		{name: "float", value: 1.5, want: 1.5, ok: true},
		{name: "string with commas", value: "1,234.5", want: 1234.5, ok: true},
		{name: "placeholder dot", value: ".", ok: false},
		{name: "placeholder dash", value: "-", ok: false},
		{name: "null string", value: "null", ok: false},
		{name: "bool rejected", value: true, ok: false},
		{name: "nil", value: nil, ok: false},
		{name: "garbage", value: "abc", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asFloat(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
