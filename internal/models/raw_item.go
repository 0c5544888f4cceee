package models

import (
	"fmt"
	"time"
)

// RawItem is a normalized, deduplicated news item held for aggregation.
// The URL is the storage key; items without a usable URL carry a synthetic one.
type RawItem struct {
	URL            string    `json:"url"`
	SourceName     string    `json:"source_name" badgerhold:"index"`
	SourceURL      string    `json:"source_url,omitempty"`
	Title          string    `json:"title,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Content        string    `json:"content,omitempty"`
	CleanedText    string    `json:"cleaned_text,omitempty"`
	PublishedAt    time.Time `json:"published_at" badgerhold:"index"`
	FetchedAt      time.Time `json:"fetched_at"`
	RelevanceScore int       `json:"relevance_score"`
	Importance     int       `json:"importance,omitempty"` // 1-3 when assigned by the filter
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate validates the raw item
func (r *RawItem) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("raw item URL is required")
	}
	if r.SourceName == "" {
		return fmt.Errorf("raw item source name is required")
	}
	if r.PublishedAt.IsZero() {
		return fmt.Errorf("raw item published timestamp is required")
	}
	return nil
}

// BestText returns the richest text available for scoring and composition
func (r *RawItem) BestText() string {
	if r.CleanedText != "" {
		return r.CleanedText
	}
	if r.Content != "" {
		return r.Content
	}
	return r.Summary
}
