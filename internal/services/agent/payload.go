package agent

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/period"
	"github.com/ternarybob/nousnews/internal/services/relevance"
)

const articlePromptGuardrails = "You are an institutional financial journalist. " +
	"Write as a human market reporter, not as a template or machine-generated bulletin. " +
	"Write in clear, professional English and keep explanations straightforward. " +
	"Include only events with direct or indirect impact on financial markets. " +
	"Reject sports, entertainment, celebrity, lifestyle, and unrelated local stories. " +
	"Do NOT write explicit timestamps or phrases like 'in this time window' in the article body. " +
	"Return plain text only; do not output HTML tags, markdown formatting, social embeds, or XML fragments. " +
	"Focus on what happened, why it matters, and likely market implications."

const filterContextChars = 1800

// buildMainPayload composes the card's main narrative. The LLM path is
// attempted when enabled and within budget; every generated field is
// gated for quality and backed by the deterministic fallback.
func (s *Service) buildMainPayload(ctx context.Context, rc *runContext, records []*models.RawItem, tf models.Timeframe, periodStart, periodEnd time.Time) cardPayload {
	fallback := s.composeFallbackPayload(records, tf, periodStart)
	promptContext := buildRecordContext(records)

	var generated models.GeneratedArticle
	var generatedRefs []string

	if s.llm != nil && s.llm.Enabled() && promptContext != "" {
		prompt := s.buildArticlePrompt(promptContext, tf, periodStart)
		if s.consumeBudget(rc, "article_generation", 0) {
			s.logEvent(rc.run.UUID, models.LogStepLLMPrompt, levelInfo, "article_prompt_prepared", prompt, map[string]interface{}{
				"timeframe":    string(tf),
				"period_start": periodStart,
				"period_end":   periodEnd,
				"records":      len(records),
				"prompt_chars": len(prompt),
			})

			result, err := s.llm.GenerateArticle(ctx, prompt)
			trace := s.llm.Trace()
			s.logEvent(rc.run.UUID, models.LogStepLLMOutput, levelInfo, "article_prompt_completed", trace.LastOutputText, map[string]interface{}{
				"status_code":  trace.LastStatusCode,
				"error":        trace.LastError,
				"model":        trace.LastModel,
				"output_chars": len(trace.LastOutputText),
				"parsed":       result != nil && err == nil,
			})

			if err == nil && result != nil {
				generated = *result
				generatedRefs = result.References
			}
		} else {
			s.logEvent(rc.run.UUID, models.LogStepNextStep, levelWarn, "article_prompt_skipped_budget", "", map[string]interface{}{
				"timeframe":         string(tf),
				"period_start":      periodStart,
				"period_end":        periodEnd,
				"records":           len(records),
				"llm_requests_used": rc.budget.used,
				"llm_budget":        rc.budget.limit,
			})
		}

		if s.config.Economist.Enabled && rc.budget.remaining() > 0 {
			if writing := s.runEconomist(ctx, rc, promptContext, tf, periodStart, periodEnd); writing != nil {
				if v := textField(writing, "article_title"); v != "" {
					generated.Title = v
				}
				if v := textField(writing, "summary"); v != "" {
					generated.Summary = v
				}
				if v := textField(writing, "article_text"); v != "" {
					generated.Article = v
				}
				if refs := stringListField(writing, "references"); len(refs) > 0 {
					generatedRefs = refs
				}
				if imp := relevance.NormalizeImportance(writing["importance_score"]); imp > 0 {
					generated.Importance = imp
				}
			}
		}
	}

	cleanTitle := sanitizeGeneratedText(generated.Title, false)
	cleanSummary := sanitizeGeneratedText(generated.Summary, false)
	cleanBody := sanitizeGeneratedText(generated.Article, true)

	title := ensureInformativeTitle(cleanTitle, rankByPublished(records), tf, periodStart)
	if isGenericTitle(title) {
		title = fallback.Title
	}

	summary := stripTimeWindowPhrasing(cleanSummary)
	if summary == "" {
		summary = fallback.Summary
	}
	if clip := s.config.Agent.SummaryClipChars; clip > 3 && len(summary) > clip {
		summary = strings.TrimRight(summary[:clip-3], " ") + "..."
	}

	body := ensureCompleteArticle(
		stripTimeWindowPhrasing(cleanBody),
		fallback.Body,
		s.config.Agent.MinArticleSentences,
		s.config.Agent.MinArticleWords,
	)

	impacts := generated.Impacts
	if len(impacts) == 0 {
		impacts = fallback.Impacts
	}

	references := normalizeReferences(generatedRefs, s.config.Agent.MaxReferences)
	if len(references) == 0 {
		references = fallback.References
	}

	importance := generated.Importance
	if importance < 1 || importance > 3 {
		importance = fallback.Importance
	}

	return cardPayload{
		Title:            title,
		Summary:          summary,
		Body:             body,
		References:       references,
		Impacts:          impacts,
		Importance:       importance,
		ImportanceReason: fallback.ImportanceReason,
		Slug:             buildArticleSlug(title, periodStart, newArticleUUID(), models.ArticleKindMain),
	}
}

// buildSideArticles picks the second and third newest records as
// companion pieces for the card.
func (s *Service) buildSideArticles(records []*models.RawItem) []*models.RawItem {
	ranked := rankByPublished(records)
	count := s.config.Agent.SideArticleCount
	if count <= 0 || len(ranked) <= 1 {
		return nil
	}
	end := 1 + count
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[1:end]
}

// buildRecordContext renders the record batch for the article prompt
func buildRecordContext(records []*models.RawItem) string {
	var chunks []string
	for _, item := range records {
		source := item.SourceName
		if source == "" {
			source = "unknown"
		}
		details := item.CleanedText
		if details == "" {
			details = item.Content
		}
		chunks = append(chunks, "("+source+") "+item.Title+
			"\nSummary: "+item.Summary+
			"\nDetails: "+details+
			"\nURL: "+item.URL)
	}
	return strings.Join(chunks, "\n\n")
}

func (s *Service) buildArticlePrompt(recordContext string, tf models.Timeframe, periodStart time.Time) string {
	template := s.config.Agent.ArticlePromptTemplate
	if template == "" {
		template = "{articles}"
	}
	body := strings.ReplaceAll(template, "{period_label}", period.Label(tf, periodStart))
	body = strings.ReplaceAll(body, "{articles}", recordContext)
	return articlePromptGuardrails + "\n\nSource records:\n" + body
}

// shouldApplyLLMFilter decides whether a scored item gets a filter
// call: filtering must be requested, the service usable, a template
// configured, budget available beyond the article reserve, and the
// heuristic score close enough to the floor to be worth a second look.
func (s *Service) shouldApplyLLMFilter(rc *runContext, score int) bool {
	if !rc.withFiltering {
		return false
	}
	if s.llm == nil || !s.llm.Enabled() {
		return false
	}
	if strings.TrimSpace(s.config.Agent.FilterPromptTemplate) == "" {
		return false
	}
	if rc.budget.remaining() <= s.config.Agent.LLMReservedForArticles {
		return false
	}
	return score >= s.config.Agent.MinRelevanceScore-s.config.Agent.LLMFilterScoreBuffer
}

// filterItem runs the LLM relevance filter on a borderline item. A nil
// decision means the call was skipped or unusable and the heuristic
// score alone decides.
func (s *Service) filterItem(ctx context.Context, rc *runContext, title, summary, content string, score int, sourceName string) *models.FilterDecision {
	if !s.consumeBudget(rc, "item_filter", s.config.Agent.LLMReservedForArticles) {
		return nil
	}

	prompt := s.buildFilterPrompt(title, summary, content, score)
	s.logEvent(rc.run.UUID, models.LogStepLLMPrompt, levelInfo, "filter_prompt_prepared", prompt, map[string]interface{}{
		"source":          sourceName,
		"heuristic_score": score,
		"prompt_chars":    len(prompt),
	})

	decision, err := s.llm.FilterItem(ctx, prompt)
	trace := s.llm.Trace()
	s.logEvent(rc.run.UUID, models.LogStepLLMOutput, levelInfo, "filter_prompt_completed", trace.LastOutputText, map[string]interface{}{
		"source":      sourceName,
		"status_code": trace.LastStatusCode,
		"error":       trace.LastError,
		"model":       trace.LastModel,
		"parsed":      decision != nil && err == nil,
	})

	if err != nil {
		return nil
	}
	return decision
}

func (s *Service) buildFilterPrompt(title, summary, content string, score int) string {
	prompt := s.config.Agent.FilterPromptTemplate
	prompt = strings.ReplaceAll(prompt, "{title}", compactText(title, 260))
	prompt = strings.ReplaceAll(prompt, "{summary}", compactText(summary, 380))
	prompt = strings.ReplaceAll(prompt, "{content}", compactText(content, filterContextChars))
	prompt = strings.ReplaceAll(prompt, "{heuristic_score}", strconv.Itoa(score))
	return prompt
}

// consumeBudget takes one LLM request from the run budget, logging the
// exhaustion warning once per run on the first refusal.
func (s *Service) consumeBudget(rc *runContext, purpose string, reserve int) bool {
	if rc.budget.consume(reserve) {
		return true
	}
	if rc.budget.shouldWarnExhausted() {
		s.logEvent(rc.run.UUID, models.LogStepNextStep, levelWarn, "llm_budget_exhausted", "", map[string]interface{}{
			"purpose":           purpose,
			"llm_requests_used": rc.budget.used,
			"llm_budget":        rc.budget.limit,
			"reserved":          reserve,
		})
	}
	return false
}

func textField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func stringListField(obj map[string]interface{}, key string) []string {
	switch v := obj[key].(type) {
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) != "" {
			return []string{v}
		}
	}
	return nil
}
