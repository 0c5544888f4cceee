package agent

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/models"
)

var (
	leadingFenceRe  = regexp.MustCompile("(?i)^\\s*```(?:json|markdown|md|text|html)?\\s*")
	trailingFenceRe = regexp.MustCompile("(?i)\\s*```\\s*$")
	whitespaceRe    = regexp.MustCompile(`\s+`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	doubleSpaceRe   = regexp.MustCompile(`\s{2,}`)
	sentenceEndRe   = regexp.MustCompile(`[.!?]+`)
	referenceURLRe  = regexp.MustCompile(`https?://\S+`)
)

// timeWindowPhrases are boilerplate fragments models insert when the
// prompt mentions the aggregation window. They read as machine output
// and are stripped from titles, summaries, and bodies.
var timeWindowPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(in|during)\s+this\s+(time\s+window|window|period|hour)\b[:,]?\s*`),
	regexp.MustCompile(`(?i)\bat\s+this\s+time\b[:,]?\s*`),
	regexp.MustCompile(`(?i)\bfor\s+the\s+current\s+time\s+window\b[:,]?\s*`),
	regexp.MustCompile(`(?i)\bwithin\s+this\s+(time\s+window|period)\b[:,]?\s*`),
	regexp.MustCompile(`(?i)\bthese\s+news\s+were\s+published\b[:,]?\s*`),
}

var genericTitleSlugs = map[string]bool{
	"market-brief":           true,
	"market-update":          true,
	"daily-market-summary":   true,
	"daily-market-brief":     true,
	"hourly-market-brief":    true,
	"financial-brief":        true,
	"financial-market-brief": true,
	"news-brief":             true,
	"news-update":            true,
	"day-market-brief":       true,
	"week-market-brief":      true,
	"month-market-brief":     true,
}

// CleanText strips HTML from ingested item text, dropping script,
// style, and noscript subtrees, and collapses whitespace.
func CleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	}
	doc.Find("script, style, noscript").Remove()

	extracted := doc.Text()
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(extracted), " ")
}

// sanitizeGeneratedText cleans LLM output for storage: code fences are
// removed, HTML and social embeds dropped, whitespace normalized.
// With keepParagraphs the paragraph structure survives; otherwise the
// result is a single line.
func sanitizeGeneratedText(text string, keepParagraphs bool) string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ""
	}

	raw = leadingFenceRe.ReplaceAllString(raw, "")
	raw = trailingFenceRe.ReplaceAllString(raw, "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		if keepParagraphs {
			return strings.TrimSpace(raw)
		}
		return whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	doc.Find("blockquote.twitter-tweet, blockquote.instagram-media, blockquote.tiktok-embed").Remove()

	var extracted string
	if keepParagraphs {
		var parts []string
		doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
			if t := s.Text(); strings.TrimSpace(t) != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			extracted = strings.Join(parts, "\n")
		} else {
			extracted = doc.Text()
		}
		extracted = strings.ReplaceAll(extracted, "\u00a0", " ")
		extracted = strings.ReplaceAll(extracted, "\r\n", "\n")
		extracted = strings.ReplaceAll(extracted, "\r", "\n")
		lines := strings.Split(extracted, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		extracted = strings.Join(lines, "\n")
		extracted = blankLinesRe.ReplaceAllString(extracted, "\n\n")
		return strings.TrimSpace(extracted)
	}

	extracted = doc.Text()
	extracted = strings.ReplaceAll(extracted, "\u00a0", " ")
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(extracted), " ")
}

// stripTimeWindowPhrasing removes window boilerplate from generated text
func stripTimeWindowPhrasing(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}
	for _, re := range timeWindowPhrases {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = doubleSpaceReplace(cleaned)
	cleaned = blankLinesRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func doubleSpaceReplace(text string) string {
	// Collapse runs of spaces/tabs without touching newlines
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(doubleSpaceRe.ReplaceAllString(line, " "))
	}
	return b.String()
}

// compactText collapses whitespace and clips at a word boundary with an ellipsis
func compactText(text string, limit int) string {
	value := whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	if len(value) <= limit {
		return value
	}
	clipped := strings.TrimRight(value[:limit], " ")
	if idx := strings.LastIndex(clipped, " "); idx > 0 {
		clipped = clipped[:idx]
	}
	return strings.TrimRight(clipped, ".,;: ") + "..."
}

// ensureCompleteArticle accepts generated body text only when it reads
// like a finished article; otherwise the deterministic fallback is used.
func ensureCompleteArticle(candidate, fallback string, minSentences, minWords int) string {
	text := sanitizeGeneratedText(candidate, true)
	fallbackClean := sanitizeGeneratedText(fallback, true)
	if text == "" {
		return fallbackClean
	}

	sentences := 0
	for _, s := range sentenceEndRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	words := len(strings.Fields(text))
	if sentences >= minSentences && words >= minWords {
		return text
	}
	return fallbackClean
}

// isGenericTitle flags placeholder titles that say nothing about the news
func isGenericTitle(value string) bool {
	slug := common.Slugify(value, 0)
	if slug == "" {
		return true
	}
	if genericTitleSlugs[slug] {
		return true
	}
	if strings.HasPrefix(slug, "market-brief") || strings.HasSuffix(slug, "market-brief") {
		return true
	}
	if strings.HasPrefix(slug, "market-update") || strings.HasSuffix(slug, "market-update") {
		return true
	}
	return false
}

// ensureInformativeTitle returns the candidate when usable, otherwise
// the newest non-generic headline, otherwise a period-stamped default.
func ensureInformativeTitle(candidate string, ranked []*models.RawItem, tf models.Timeframe, periodStart time.Time) string {
	value := compactText(candidate, 140)
	if value != "" && !isGenericTitle(value) {
		return value
	}

	for _, item := range ranked {
		headline := item.Title
		if headline == "" {
			headline = item.Summary
		}
		headline = compactText(headline, 120)
		if headline != "" && !isGenericTitle(headline) {
			return headline
		}
	}

	switch tf {
	case models.TimeframeHour:
		return fmt.Sprintf("Financial Market Impact Update for %s", periodStart.Format("2006-01-02 15:00 UTC"))
	case models.TimeframeDay:
		periodEnd := periodStart.Add(24 * time.Hour)
		return fmt.Sprintf("24-Hour Financial Market Impact Summary ending %s", periodEnd.Format("2006-01-02 15:00 UTC"))
	case models.TimeframeWeek:
		return fmt.Sprintf("Weekly Financial Market Impact Summary for Week of %s", periodStart.Format("2006-01-02"))
	}
	return fmt.Sprintf("Monthly Financial Market Impact Summary for %s", periodStart.Format("January 2006"))
}

// normalizeReferences extracts deduplicated URLs from free-form reference values
func normalizeReferences(references []string, max int) []string {
	var cleaned []string
	seen := map[string]bool{}
	for _, ref := range references {
		for _, url := range referenceURLRe.FindAllString(ref, -1) {
			trimmed := strings.TrimRight(strings.TrimSpace(url), ").,;")
			if trimmed == "" || seen[trimmed] {
				continue
			}
			seen[trimmed] = true
			cleaned = append(cleaned, trimmed)
			if max > 0 && len(cleaned) >= max {
				return cleaned
			}
		}
	}
	return cleaned
}

// buildArticleSlug produces a deterministic, URL-safe article slug:
// period stamp, slugified title, short uniqueness suffix.
func buildArticleSlug(title string, periodStart time.Time, articleUUID string, kind string) string {
	base := common.Slugify(title, 110)
	if base == "" {
		if kind == models.ArticleKindMain {
			base = "financial-market-update"
		} else {
			base = "market-detail"
		}
	}
	suffix := articleUUID
	if idx := strings.Index(suffix, "-"); idx > 0 {
		suffix = suffix[:idx]
	}
	return fmt.Sprintf("%s-%s-%s", periodStart.Format("200601021504"), base, suffix)
}

func newArticleUUID() string {
	return uuid.New().String()
}
