package sources

import (
	"time"
)

// NormalizedItem is a provider-agnostic news item produced by the
// adapters. PublishedAt is zero when the provider gave no usable
// timestamp; the ingest step decides what to do with those.
type NormalizedItem struct {
	Title       string
	Summary     string
	Content     string
	URL         string
	PublishedAt time.Time
}

// Empty reports whether the item carries no usable text at all
func (n NormalizedItem) Empty() bool {
	return n.Title == "" && n.Summary == "" && n.Content == ""
}

// BestText returns the richest text field for scoring
func (n NormalizedItem) BestText() string {
	if n.Content != "" {
		return n.Content
	}
	if n.Summary != "" {
		return n.Summary
	}
	return n.Title
}
