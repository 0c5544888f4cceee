package relevance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var highImpactTokens = []string{
	"central bank", "interest rate", "rate hike", "rate cut",
	"inflation", "cpi", "gdp", "recession", "banking crisis",
	"default", "sanction", "tariff", "war", "oil shock",
	"energy disruption", "sovereign debt",
}

var mediumImpactTokens = []string{
	"earnings", "guidance", "merger", "acquisition", "treasury",
	"yield", "credit spread", "commodity", "supply chain",
	"regulation", "antitrust", "pmi", "jobs report", "unemployment",
	"housing",
}

type impactChannel struct {
	label  string
	tokens []string
}

var impactChannels = []impactChannel{
	{"rates and monetary policy", []string{"rate", "yield", "bond", "treasury", "inflation", "central bank"}},
	{"FX positioning", []string{"currency", "forex", "fx", "dollar", "euro", "yen"}},
	{"commodity pricing", []string{"oil", "gas", "commodity", "energy", "metal"}},
	{"equity risk appetite", []string{"equity", "stock", "earnings", "valuation", "sector"}},
	{"credit conditions", []string{"credit", "default", "spread", "bank"}},
}

var scopeLabels = map[int]string{
	1: "localized",
	2: "regional or sector-wide",
	3: "global cross-asset",
}

// InferImportance derives a 1-3 importance score and a one-sentence
// reason from the combined card text. A run with ten or more records
// is bumped one level since breadth itself signals market attention.
func InferImportance(combined string, recordCount int) (int, string) {
	low := strings.ToLower(combined)

	score := 1
	if containsAny(low, highImpactTokens) {
		score = 3
	} else if containsAny(low, mediumImpactTokens) {
		score = 2
	}

	if recordCount >= 10 && score < 3 {
		score++
	}

	var channels []string
	for _, ch := range impactChannels {
		if containsAny(low, ch.tokens) {
			channels = append(channels, ch.label)
		}
	}
	if len(channels) == 0 {
		channels = append(channels, "broad macro sentiment")
	}

	scope := scopeLabels[score]
	reason := fmt.Sprintf("%s market impact expected via %s.", capitalize(scope), channels[0])
	if score >= 2 && len(channels) > 1 {
		reason = fmt.Sprintf("%s market impact expected via %s and %s.", capitalize(scope), channels[0], channels[1])
	}
	return score, reason
}

// NormalizeImportance maps free-form importance values to 1-3.
// Accepts numbers (clamped) and the usual severity words; returns 0
// when the value is unusable.
func NormalizeImportance(value interface{}) int {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		if text == "" {
			return 0
		}
		aliases := map[string]int{
			"low": 1, "minor": 1, "localized": 1,
			"medium": 2, "moderate": 2, "regional": 2,
			"high": 3, "severe": 3, "global": 3, "systemic": 3,
		}
		if score, ok := aliases[text]; ok {
			return score
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0
		}
		return clampImportance(f)
	case float64:
		return clampImportance(v)
	case float32:
		return clampImportance(float64(v))
	case int:
		return clampImportance(float64(v))
	case int64:
		return clampImportance(float64(v))
	}
	return 0
}

func clampImportance(f float64) int {
	score := int(math.Round(f))
	if score < 1 {
		return 1
	}
	if score > 3 {
		return 3
	}
	return score
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
