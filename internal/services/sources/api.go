package sources

import (
	"strings"
)

// envelopeKeys are checked in order on a top-level response object.
// Each hit contributes its entries; an object value is unwrapped one
// level through the nested keys before giving up on it.
var envelopeKeys = []string{
	"articles", "data", "results", "news", "feed",
	"items", "stories", "entries", "releases",
}

var nestedEnvelopeKeys = []string{"items", "results", "articles", "news", "feed"}

var titleKeys = []string{"title", "headline", "name", "event", "subject"}
var summaryKeys = []string{"summary", "description", "abstract", "teaser", "text"}
var contentKeys = []string{"content", "body", "details", "snippet", "full_text"}

var publishedKeys = []string{
	"published_at", "publishedAt", "pubDate", "date", "datetime",
	"time_published", "updated", "published",
}

// singleItemKeys mark a bare top-level object as itself being the item
var singleItemKeys = []string{"title", "headline", "summary", "description", "content", "url", "link"}

// ExtractCandidates pulls the list of item objects out of a decoded
// JSON API response, whatever envelope the provider wrapped it in.
func ExtractCandidates(data interface{}) []map[string]interface{} {
	if list, ok := data.([]interface{}); ok {
		return objectsOf(list)
	}

	obj, ok := data.(map[string]interface{})
	if !ok {
		return nil
	}

	var candidates []map[string]interface{}
	for _, key := range envelopeKeys {
		switch value := obj[key].(type) {
		case []interface{}:
			candidates = append(candidates, objectsOf(value)...)
		case map[string]interface{}:
			for _, nested := range nestedEnvelopeKeys {
				if list, ok := value[nested].([]interface{}); ok {
					candidates = append(candidates, objectsOf(list)...)
					break
				}
			}
		}
	}

	// A response that is itself a single item
	if len(candidates) == 0 {
		for _, key := range singleItemKeys {
			if _, ok := obj[key]; ok {
				candidates = append(candidates, obj)
				break
			}
		}
	}

	return candidates
}

func objectsOf(list []interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, item := range list {
		if obj, ok := item.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

// NormalizeEntry maps one provider item object onto a NormalizedItem
func NormalizeEntry(entry map[string]interface{}) NormalizedItem {
	title := firstText(entry, titleKeys)
	summary := firstText(entry, summaryKeys)
	content := firstText(entry, contentKeys)
	if content == "" {
		content = summary
	}
	if content == "" {
		content = title
	}

	var published interface{}
	for _, key := range publishedKeys {
		if value, ok := entry[key]; ok && value != nil && value != "" {
			published = value
			break
		}
	}

	return NormalizedItem{
		Title:       title,
		Summary:     summary,
		Content:     content,
		URL:         extractEntryURL(entry),
		PublishedAt: ParseProviderTime(published),
	}
}

func firstText(entry map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if value, ok := entry[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func extractEntryURL(entry map[string]interface{}) string {
	for _, key := range []string{"url", "link", "uri", "id"} {
		if value, ok := entry[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}

	// Atom-style link lists carry the URL under href
	if links, ok := entry["links"].([]interface{}); ok {
		for _, item := range links {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			for _, key := range []string{"href", "url", "link"} {
				if value, ok := obj[key].(string); ok {
					if trimmed := strings.TrimSpace(value); trimmed != "" {
						return trimmed
					}
				}
			}
		}
	}
	return ""
}
