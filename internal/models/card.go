package models

import (
	"fmt"
	"time"
)

// Timeframe identifies a card aggregation window
type Timeframe string

const (
	TimeframeHour  Timeframe = "hour"
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// Timeframes lists all supported timeframes in finalization order
var Timeframes = []Timeframe{TimeframeHour, TimeframeDay, TimeframeWeek, TimeframeMonth}

// Card status constants
const (
	CardStatusDraft = "draft"
	CardStatusFinal = "final"
)

// Card article kind constants
const (
	ArticleKindMain = "main"
	ArticleKindSide = "side"
)

// Card is a period-scoped narrative summary. One card exists per
// timeframe + period start; the UUID is the storage key.
type Card struct {
	UUID             string    `json:"uuid"`
	Timeframe        Timeframe `json:"timeframe" badgerhold:"index"`
	PeriodStart      time.Time `json:"period_start" badgerhold:"index"`
	PeriodEnd        time.Time `json:"period_end"`
	Slug             string    `json:"slug" badgerhold:"index"`
	Title            string    `json:"title,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Body             string    `json:"body,omitempty"`
	References       []string  `json:"references,omitempty"`
	Impacts          []string  `json:"impacts,omitempty"`
	Importance       int       `json:"importance,omitempty"` // 1-3
	ImportanceReason string    `json:"importance_reason,omitempty"`
	SourceLabel      string    `json:"source_label,omitempty"` // comma-joined contributing sources
	PublishedAt      time.Time `json:"published_at,omitempty"` // newest contributing item
	ArticleCount     int       `json:"article_count"`
	Status           string    `json:"status" badgerhold:"index"` // "draft" or "final"
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasContent reports whether the card carries any narrative text
func (c *Card) HasContent() bool {
	return c.Title != "" || c.Summary != "" || c.Body != ""
}

// Validate validates the card
func (c *Card) Validate() error {
	if c.UUID == "" {
		return fmt.Errorf("card UUID is required")
	}
	if !IsValidTimeframe(c.Timeframe) {
		return fmt.Errorf("invalid timeframe: %s", c.Timeframe)
	}
	if c.PeriodStart.IsZero() || c.PeriodEnd.IsZero() {
		return fmt.Errorf("card period bounds are required")
	}
	if !c.PeriodEnd.After(c.PeriodStart) {
		return fmt.Errorf("card period end must be after period start")
	}
	if c.Status != CardStatusDraft && c.Status != CardStatusFinal {
		return fmt.Errorf("invalid card status: %s", c.Status)
	}
	return nil
}

// IsFinal reports whether the card has been finalized
func (c *Card) IsFinal() bool {
	return c.Status == CardStatusFinal
}

// IsValidTimeframe reports whether tf is a supported timeframe
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TimeframeHour, TimeframeDay, TimeframeWeek, TimeframeMonth:
		return true
	}
	return false
}

// CardArticle is a generated narrative attached to a card. Each card has
// at most one main article (sharing the card's UUID) and a small number
// of side articles.
type CardArticle struct {
	UUID        string    `json:"uuid"`
	CardUUID    string    `json:"card_uuid" badgerhold:"index"`
	Kind        string    `json:"kind" badgerhold:"index"` // "main" or "side"
	Slug        string    `json:"slug" badgerhold:"index"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	Importance  int       `json:"importance"` // 1-3
	Impacts     []string  `json:"impacts,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate validates the card article
func (a *CardArticle) Validate() error {
	if a.UUID == "" {
		return fmt.Errorf("card article UUID is required")
	}
	if a.CardUUID == "" {
		return fmt.Errorf("card article card UUID is required")
	}
	if a.Kind != ArticleKindMain && a.Kind != ArticleKindSide {
		return fmt.Errorf("invalid card article kind: %s", a.Kind)
	}
	if a.Title == "" {
		return fmt.Errorf("card article title is required")
	}
	if a.Importance < 1 || a.Importance > 3 {
		return fmt.Errorf("card article importance must be 1-3, got %d", a.Importance)
	}
	return nil
}

// CardAsset links a card to a tracked asset symbol for chart display
type CardAsset struct {
	ID        string    `json:"id"` // card uuid + "|" + symbol
	CardUUID  string    `json:"card_uuid" badgerhold:"index"`
	Symbol    string    `json:"symbol"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
