package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/relevance"
)

// cardPayload is the composed narrative for a card's main article
type cardPayload struct {
	Title            string
	Summary          string
	Body             string
	References       []string
	Impacts          []string
	Importance       int
	ImportanceReason string
	Slug             string
}

// rankByPublished returns the records sorted newest first
func rankByPublished(records []*models.RawItem) []*models.RawItem {
	ranked := make([]*models.RawItem, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PublishedAt.After(ranked[j].PublishedAt)
	})
	return ranked
}

// composeFallbackPayload builds the deterministic card narrative used
// when the LLM is disabled, over budget, or returned unusable output.
func (s *Service) composeFallbackPayload(records []*models.RawItem, tf models.Timeframe, periodStart time.Time) cardPayload {
	ranked := rankByPublished(records)

	title := ensureInformativeTitle("", ranked, tf, periodStart)
	intro := fmt.Sprintf(
		"%d financially relevant developments were identified across tracked market sources, "+
			"with clear implications for cross-asset positioning.", len(ranked))

	var details []string
	maxHighlights := s.config.Agent.MaxFallbackHighlights
	for _, item := range ranked {
		if len(details) >= maxHighlights {
			break
		}
		headline := item.Title
		if headline == "" {
			headline = item.Summary
		}
		if headline == "" {
			headline = item.Content
		}
		headline = compactText(headline, 180)
		if headline == "" {
			continue
		}
		sourceName := item.SourceName
		if sourceName == "" {
			sourceName = "newswire"
		}
		details = append(details, fmt.Sprintf("%s reported %s. %s", sourceName, headline, impactSentence(item)))
	}
	if len(details) == 0 {
		details = append(details,
			"No lower-impact or off-topic items were included; this brief is restricted to market-moving records only.")
	}

	closing := "Taken together, these signals can influence rate expectations, risk appetite, " +
		"currency positioning, and sector-level equity rotation in the next trading sessions."

	bodyParts := append([]string{intro}, details...)
	bodyParts = append(bodyParts, closing)
	body := strings.Join(bodyParts, "\n\n")

	summaryParts := append([]string{intro}, firstN(details, 2)...)
	summary := compactText(strings.Join(summaryParts, " "), s.config.Agent.SummaryClipChars)

	var urls []string
	for _, item := range ranked {
		if item.URL != "" {
			urls = append(urls, item.URL)
		}
	}

	combined := combinedText(ranked)
	importance, reason := relevance.InferImportance(combined, len(ranked))

	return cardPayload{
		Title:            title,
		Summary:          summary,
		Body:             body,
		References:       normalizeReferences(urls, s.config.Agent.MaxReferences),
		Impacts:          deriveImpacts(ranked),
		Importance:       importance,
		ImportanceReason: reason,
	}
}

// impactSentence maps an item onto a one-line market consequence by
// catalyst category. Checked in priority order; first match wins.
func impactSentence(item *models.RawItem) string {
	low := strings.ToLower(item.Title + " " + item.Summary + " " + item.Content)
	switch {
	case containsAnyToken(low, "interest rate", "fed", "ecb", "inflation", "cpi", "ppi", "gdp"):
		return "This type of catalyst typically reprices rates markets and policy-sensitive FX pairs."
	case containsAnyToken(low, "earnings", "guidance", "revenue", "profit", "m&a", "merger", "acquisition"):
		return "This development is likely to affect equity valuation multiples and sector positioning."
	case containsAnyToken(low, "oil", "gas", "commodity", "energy", "supply chain", "tariff", "sanction"):
		return "Commodity-linked inflation expectations and regional risk premia could adjust quickly."
	case containsAnyToken(low, "bond", "yield", "treasury", "credit", "default", "rating"):
		return "Credit spreads and sovereign yield curves may react as investors reprice risk."
	}
	return "Cross-asset positioning may adjust as participants incorporate the new information into risk scenarios."
}

// deriveImpacts lists the asset-class channels touched by the batch
func deriveImpacts(records []*models.RawItem) []string {
	low := strings.ToLower(combinedText(records))

	var impacts []string
	if containsAnyToken(low, "interest rate", "fed", "ecb", "inflation", "cpi", "ppi", "gdp") {
		impacts = append(impacts, "Rates and FX: policy expectations can reprice sovereign yields and major currency pairs.")
	}
	if containsAnyToken(low, "earnings", "guidance", "revenue", "profit", "m&a", "merger", "acquisition") {
		impacts = append(impacts, "Equities: sector rotation risk rises as earnings and corporate actions reshape valuation assumptions.")
	}
	if containsAnyToken(low, "oil", "gas", "commodity", "energy", "supply chain", "tariff", "sanction") {
		impacts = append(impacts, "Commodities: supply and geopolitics can amplify volatility in energy and input-sensitive sectors.")
	}
	if containsAnyToken(low, "bond", "yield", "treasury", "credit", "default", "rating") {
		impacts = append(impacts, "Credit: spread widening risk can pressure leveraged balance sheets and higher-beta assets.")
	}
	if len(impacts) == 0 {
		impacts = append(impacts, "Risk sentiment: cross-asset positioning may shift as new macro information is priced in.")
	}
	if len(impacts) > 6 {
		impacts = impacts[:6]
	}
	return impacts
}

func combinedText(records []*models.RawItem) string {
	var b strings.Builder
	for _, item := range records {
		b.WriteString(item.Title)
		b.WriteString(" ")
		b.WriteString(item.Summary)
		b.WriteString(" ")
		b.WriteString(item.Content)
		b.WriteString(" ")
	}
	return b.String()
}

func containsAnyToken(text string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
