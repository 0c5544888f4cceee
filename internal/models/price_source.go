package models

import (
	"fmt"
	"regexp"
	"time"
)

// PriceSource represents a configured price feed for one asset symbol
type PriceSource struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Kind             string            `json:"kind"` // "rss" or "api"
	URL              string            `json:"url"`
	Symbol           string            `json:"symbol"`
	Enabled          bool              `json:"enabled"`
	APIKey           string            `json:"api_key,omitempty"`
	APIKeyParam      string            `json:"api_key_param,omitempty"`
	APIKeyHeader     string            `json:"api_key_header,omitempty"`
	ExtraParams      map[string]string `json:"extra_params,omitempty"`
	PriceRegex       string            `json:"price_regex,omitempty"` // Must contain a named group "price"
	PriceScale       float64           `json:"price_scale,omitempty"`
	RateLimitPerSec  int               `json:"rate_limit_per_sec,omitempty"`
	RateLimitSeconds int               `json:"rate_limit_seconds,omitempty"`
	LastSyncedAt     time.Time         `json:"last_synced_at,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	FailureCount     int               `json:"failure_count"`
	BackoffUntil     time.Time         `json:"backoff_until,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Validate validates the price source configuration
func (s *PriceSource) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}

	if s.Kind != SourceKindRSS && s.Kind != SourceKindAPI {
		return fmt.Errorf("invalid source kind: %s", s.Kind)
	}

	if s.URL == "" {
		return fmt.Errorf("source URL is required")
	}

	if s.Symbol == "" {
		return fmt.Errorf("asset symbol is required")
	}

	if s.PriceRegex != "" {
		re, err := regexp.Compile(s.PriceRegex)
		if err != nil {
			return fmt.Errorf("invalid price regex: %w", err)
		}
		hasPriceGroup := false
		for _, name := range re.SubexpNames() {
			if name == "price" {
				hasPriceGroup = true
				break
			}
		}
		if !hasPriceGroup {
			return fmt.Errorf("price regex must contain a named group \"price\"")
		}
	}

	return nil
}

// InBackoff reports whether the source is currently backed off
func (s *PriceSource) InBackoff(now time.Time) bool {
	return !s.BackoffUntil.IsZero() && now.Before(s.BackoffUntil)
}

// Scale returns the configured price multiplier, defaulting to 1
func (s *PriceSource) Scale() float64 {
	if s.PriceScale == 0 {
		return 1
	}
	return s.PriceScale
}
