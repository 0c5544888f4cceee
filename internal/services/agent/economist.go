package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ternarybob/nousnews/internal/models"
)

const memoryStateID = "economist"

// runEconomist executes the two-stage rewrite: a signals extraction
// pass over the record context, then a writing pass that turns the
// signals into the final narrative. Both passes draw on the rolling
// memory, and the writing output is appended back into it. Returns the
// writing object, or nil when the rewrite was skipped or unusable.
func (s *Service) runEconomist(ctx context.Context, rc *runContext, recordContext string, tf models.Timeframe, periodStart, periodEnd time.Time) map[string]interface{} {
	if recordContext == "" {
		return nil
	}
	signalsTemplate := strings.TrimSpace(s.config.Economist.SignalsPromptTemplate)
	writingTemplate := strings.TrimSpace(s.config.Economist.WritingPromptTemplate)
	if signalsTemplate == "" || writingTemplate == "" {
		return nil
	}

	memoryText := s.loadMemoryText()
	periodMeta := map[string]interface{}{
		"timeframe":    string(tf),
		"period_start": periodStart,
		"period_end":   periodEnd,
	}

	signalsPrompt := strings.ReplaceAll(signalsTemplate, "{context}", recordContext)
	signalsPrompt = strings.ReplaceAll(signalsPrompt, "{memory}", memoryText)
	s.logEvent(rc.run.UUID, models.LogStepLLMPrompt, levelInfo, "economist_signals_prompt_prepared", signalsPrompt, periodMeta)

	signals := s.budgetedGenerateJSON(ctx, rc, signalsPrompt, "economist_signals")
	s.logEvent(rc.run.UUID, models.LogStepLLMOutput, levelInfo, "economist_signals_prompt_completed", s.llm.Trace().LastOutputText, periodMeta)
	if signals == nil {
		return nil
	}

	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return nil
	}
	writingPrompt := strings.ReplaceAll(writingTemplate, "{signals}", string(signalsJSON))
	writingPrompt = strings.ReplaceAll(writingPrompt, "{memory}", memoryText)
	s.logEvent(rc.run.UUID, models.LogStepLLMPrompt, levelInfo, "economist_writing_prompt_prepared", writingPrompt, periodMeta)

	writing := s.budgetedGenerateJSON(ctx, rc, writingPrompt, "economist_writing")
	s.logEvent(rc.run.UUID, models.LogStepLLMOutput, levelInfo, "economist_writing_prompt_completed", s.llm.Trace().LastOutputText, periodMeta)
	if writing == nil {
		return nil
	}

	s.storeMemory(writing)
	return writing
}

// budgetedGenerateJSON runs a free-form generation call inside the run
// budget and parses the response as a JSON object.
func (s *Service) budgetedGenerateJSON(ctx context.Context, rc *runContext, prompt, purpose string) map[string]interface{} {
	if !s.consumeBudget(rc, purpose, 0) {
		return nil
	}
	text, err := s.llm.GenerateText(ctx, prompt)
	if err != nil || text == "" {
		return nil
	}
	return parseJSONObject(text)
}

// parseJSONObject extracts the first top-level JSON object from text
// that may carry surrounding chatter or code fences.
func parseJSONObject(text string) map[string]interface{} {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil
	}
	return obj
}

// loadMemoryText returns the rolling memory truncated to the
// configured budget: 4 characters per token, keeping the tail so the
// most recent entries survive.
func (s *Service) loadMemoryText() string {
	state, err := s.store.PriceStorage().GetMemoryState(memoryStateID)
	if err != nil || state == nil {
		return ""
	}
	return truncateMemory(state.Text, s.config.Economist.MemoryTokenLimit)
}

// storeMemory appends the writing summary to the rolling memory with a
// timestamp header, truncating from the front when over budget.
func (s *Service) storeMemory(writing map[string]interface{}) {
	updated := textField(writing, "summary")
	if updated == "" {
		updated = textField(writing, "article_text")
	}
	if updated == "" {
		return
	}

	existing := ""
	if state, err := s.store.PriceStorage().GetMemoryState(memoryStateID); err == nil && state != nil {
		existing = state.Text
	}

	stamp := time.Now().UTC().Format("2006-01-02 15:04")
	combined := "[" + stamp + "] " + updated
	if existing != "" {
		combined = existing + "\n\n" + combined
	}

	state := &models.MemoryState{
		ID:        memoryStateID,
		Text:      truncateMemory(combined, s.config.Economist.MemoryTokenLimit),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.PriceStorage().SaveMemoryState(state); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist economist memory")
	}
}

func truncateMemory(text string, tokenLimit int) string {
	if tokenLimit <= 0 {
		return text
	}
	charLimit := tokenLimit * 4
	if len(text) <= charLimit {
		return text
	}
	return text[len(text)-charLimit:]
}
