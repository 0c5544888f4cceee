package models

import (
	"fmt"
	"time"
)

// SourceKind constants
const (
	SourceKindRSS = "rss"
	SourceKindAPI = "api"
)

// NewsSource represents a configured news feed or API endpoint
type NewsSource struct {
	ID               string            `json:"id"` // Slugified name, stable across restarts
	Name             string            `json:"name"`
	Kind             string            `json:"kind"` // "rss" or "api"
	URL              string            `json:"url"`
	Enabled          bool              `json:"enabled"`
	APIKey           string            `json:"api_key,omitempty"`
	APIKeyParam      string            `json:"api_key_param,omitempty"`  // Query parameter carrying the key
	APIKeyHeader     string            `json:"api_key_header,omitempty"` // Header carrying the key
	Query            string            `json:"query,omitempty"`
	QueryParam       string            `json:"query_param,omitempty"`
	Language         string            `json:"language,omitempty"`
	LanguageParam    string            `json:"language_param,omitempty"`
	Region           string            `json:"region,omitempty"`
	RegionParam      string            `json:"region_param,omitempty"`
	Topic            string            `json:"topic,omitempty"`
	TopicParam       string            `json:"topic_param,omitempty"`
	SinceParam       string            `json:"since_param,omitempty"`
	SinceFormat      string            `json:"since_format,omitempty"` // "unix" or "rfc3339"
	ExtraParams      map[string]string `json:"extra_params,omitempty"`
	RateLimitSeconds int               `json:"rate_limit_seconds,omitempty"`
	LastFetchedAt    time.Time         `json:"last_fetched_at,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	FailureCount     int               `json:"failure_count"`
	BackoffUntil     time.Time         `json:"backoff_until,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Validate validates the news source configuration
func (s *NewsSource) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}

	if s.Kind != SourceKindRSS && s.Kind != SourceKindAPI {
		return fmt.Errorf("invalid source kind: %s", s.Kind)
	}

	if s.URL == "" {
		return fmt.Errorf("source URL is required")
	}

	if s.RateLimitSeconds < 0 {
		return fmt.Errorf("rate limit seconds must be non-negative")
	}

	return nil
}

// InBackoff reports whether the source is currently backed off
func (s *NewsSource) InBackoff(now time.Time) bool {
	return !s.BackoffUntil.IsZero() && now.Before(s.BackoffUntil)
}
