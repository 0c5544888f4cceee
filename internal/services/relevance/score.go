package relevance

import (
	"regexp"
	"strings"
)

// financialKeywords add +2 each when present in the combined text
var financialKeywords = []string{
	"fed", "central bank", "ecb", "bank of england", "pboc", "boj",
	"interest rate", "rate hike", "rate cut", "monetary policy",
	"qe", "quantitative easing", "inflation", "cpi", "ppi", "gdp",
	"recession", "unemployment", "jobs report", "stock market",
	"equity", "nasdaq", "s&p", "dow jones", "bond", "yield",
	"treasury", "dollar", "euro", "currency", "forex", "fx",
	"commodity", "oil", "gas", "gold", "earnings", "revenue",
	"profit", "eps", "guidance", "m&a", "merger", "acquisition",
	"ipo", "bankruptcy", "default", "tariff", "trade", "supply chain",
	"logistics", "regulation", "sec", "antitrust", "credit rating",
	"moody", "fitch", "sanction", "geopolitical", "energy",
	"oil price", "natural gas", "commodity shock", "yield curve",
	"credit spread", "mortgage", "housing", "pmi", "manufacturing",
	"volatility", "vix", "liquidity", "leverage", "derivative",
	"hedge", "bank",
}

// titleSalienceKeywords add +4 each when present in the title
var titleSalienceKeywords = []string{
	"central bank", "fed", "interest rate", "inflation",
	"gdp", "default", "bankruptcy", "sanction",
}

// rejectKeywords subtract 3 each when present in the combined text
var rejectKeywords = []string{
	"celebrity", "actor", "actress", "sports", "football",
	"basketball", "soccer", "award", "oscar", "emmy", "grammy",
	"concert", "album", "band", "wedding", "divorce", "relationship",
	"celebrity gossip", "influencer", "tiktok", "instagram", "movie",
	"film", "netflix", "fashion", "beauty", "restaurant", "travel",
	"vacation", "hotel", "resort", "pet", "dog", "cat", "game",
	"esports",
}

// sentenceTerms mark a sentence as financially relevant
var sentenceTerms = []string{
	"fed", "central bank", "interest rate", "inflation", "gdp",
	"unemployment", "earnings", "revenue", "m&a", "merger",
	"acquisition", "ipo", "bankruptcy", "bond", "yield", "treasury",
	"currency", "forex", "oil", "gas", "commodity", "tariff",
	"trade", "sanction", "credit", "rating", "regulation", "sec",
}

var sentenceSplitRe = regexp.MustCompile(`(?:[.?!])\s+`)

// Score computes the keyword relevance of an item. Financial keywords
// in the body or title score +2, high-salience terms in the title +4,
// off-topic terms -3, any financially relevant sentence +3, and short
// positive items get +1 so brief wire headlines are not starved.
func Score(text, title string) int {
	combined := strings.ToLower(text + " " + title)

	score := 0
	for _, kw := range financialKeywords {
		if strings.Contains(combined, kw) {
			score += 2
		}
	}

	titleLower := strings.ToLower(title)
	for _, kw := range titleSalienceKeywords {
		if strings.Contains(titleLower, kw) {
			score += 4
		}
	}

	for _, kw := range rejectKeywords {
		if strings.Contains(combined, kw) {
			score -= 3
		}
	}

	if RelevantSentences(text) != "" {
		score += 3
	}

	if len(combined) < 200 && score > 0 {
		score++
	}

	return score
}

// RelevantSentences extracts the sentences containing a financial term
func RelevantSentences(text string) string {
	if text == "" {
		return ""
	}

	var picks []string
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		low := strings.ToLower(sentence)
		for _, term := range sentenceTerms {
			if strings.Contains(low, term) {
				picks = append(picks, strings.TrimSpace(sentence))
				break
			}
		}
	}
	return strings.TrimSpace(strings.Join(picks, " "))
}
