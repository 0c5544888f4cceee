package prices

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/nousnews/internal/services/sources"
)

// defaultPriceRegex matches a decimal number with optional thousand
// separators when a source has no regex of its own.
const defaultPriceRegex = `(?P<price>\d{1,3}(?:,\d{3})*(?:\.\d+)?)`

var priceKeys = []string{
	"close", "c", "price", "last", "last_price", "value",
	"avg_interest_rate_amt", "yield", "rate",
}

var timestampKeys = []string{
	"published_at", "publishedAt", "timestamp", "datetime",
	"time", "date", "record_date", "t",
}

// observation is one price reading extracted from a feed. When
// hasPrice is false the reading carries only text and the source's
// regex decides whether a price can be pulled out of it.
type observation struct {
	price     float64
	hasPrice  bool
	volume    float64
	published time.Time
	text      string
}

// parsePricePayload walks a provider JSON payload and collects price
// observations. Providers disagree wildly on envelope shape, so this
// tries a direct quote object, a FRED-style observations list, the
// common list envelopes, and finally a nested spot object before
// falling back to the raw body as regex fodder.
func parsePricePayload(data interface{}, rawText string) []observation {
	var items []observation

	switch payload := data.(type) {
	case map[string]interface{}:
		if row, ok := candidateRow(payload); ok {
			items = append(items, row)
		}

		if list, ok := payload["observations"].([]interface{}); ok {
			for i := len(list) - 1; i >= 0; i-- {
				row, ok := list[i].(map[string]interface{})
				if !ok {
					continue
				}
				value, ok := asFloat(row["value"])
				if !ok {
					continue
				}
				items = append(items, observation{
					price:     value,
					hasPrice:  true,
					published: sources.ParseProviderTime(row["date"]),
				})
				break
			}
		}

		for _, key := range []string{"data", "results", "prices", "quotes", "values"} {
			list, ok := payload[key].([]interface{})
			if !ok {
				continue
			}
			for _, entry := range list {
				row, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				if parsed, ok := candidateRow(row); ok {
					items = append(items, parsed)
				}
			}
		}

		if len(items) == 0 {
			if spot, ok := nestedSpotPrice(payload); ok {
				items = append(items, observation{price: spot, hasPrice: true})
			}
		}

	case []interface{}:
		for _, entry := range payload {
			row, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			if parsed, ok := candidateRow(row); ok {
				items = append(items, parsed)
			}
		}
	}

	if len(items) == 0 {
		items = append(items, observation{text: rawText})
	}
	return items
}

// candidateRow reads a single quote object. The price key priority
// covers equity quotes, FX, treasury yield feeds, and spot responses.
func candidateRow(row map[string]interface{}) (observation, bool) {
	var price float64
	found := false
	for _, key := range priceKeys {
		if v, ok := asFloat(row[key]); ok {
			price = v
			found = true
			break
		}
	}
	if !found {
		if v, ok := asFloat(row["usd"]); ok {
			price = v
			found = true
		}
	}
	if !found {
		return observation{}, false
	}

	volume, ok := asFloat(row["volume"])
	if !ok {
		volume, _ = asFloat(row["v"])
	}

	var published time.Time
	for _, key := range timestampKeys {
		if raw, exists := row[key]; exists && raw != nil {
			published = sources.ParseProviderTime(raw)
			if !published.IsZero() {
				break
			}
		}
	}

	return observation{
		price:     price,
		hasPrice:  true,
		volume:    volume,
		published: published,
	}, true
}

// nestedSpotPrice handles envelopes like {"bitcoin": {"usd": 64123}}
func nestedSpotPrice(payload map[string]interface{}) (float64, bool) {
	for _, value := range payload {
		nested, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		if usd, ok := asFloat(nested["usd"]); ok {
			return usd, true
		}
		if price, ok := asFloat(nested["price"]); ok {
			return price, true
		}
	}
	return 0, false
}

// extractPrice pulls a price out of free text using the source regex.
// A named group "price" wins; otherwise the whole match is used.
func extractPrice(text, pattern string, scale float64) (float64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	if pattern == "" {
		pattern = defaultPriceRegex
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, false
	}

	match := re.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	value := match[0]
	for i, name := range re.SubexpNames() {
		if name == "price" && i < len(match) {
			value = match[i]
			break
		}
	}

	parsed, ok := asFloat(value)
	if !ok {
		return 0, false
	}
	if scale == 0 {
		scale = 1
	}
	return parsed * scale, true
}

// asFloat coerces JSON scalar values to a float, rejecting booleans,
// NaN, and the placeholder strings some providers emit for gaps.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case string:
		text := strings.TrimSpace(v)
		if text == "" || text == "." || text == "-" || text == "null" || text == "None" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil || math.IsNaN(parsed) {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
