package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/nousnews/internal/models"
)

// Log event levels
const (
	levelInfo = "info"
	levelWarn = "warn"
	levelErr  = "error"
)

// logEvent persists a structured pipeline event. Long content is
// clipped head-heavy (70% head, 30% tail) so both the opening of a
// prompt and the end of a response survive; clip facts go into the
// payload. Storage failures only degrade diagnostics and are logged,
// never propagated.
func (s *Service) logEvent(runUUID, step, level, message, content string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}

	clipped, clipMeta := clipLogContent(content, s.config.Agent.LogClipChars)
	for k, v := range clipMeta {
		payload[k] = v
	}
	if clipped != "" {
		payload["content"] = clipped
	}

	event := &models.AgentLogEvent{
		ID:        uuid.New().String(),
		RunUUID:   runUUID,
		Step:      step,
		Level:     level,
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.LogStorage().AppendEvent(event); err != nil {
		s.logger.Warn().Err(err).Str("step", step).Str("message", message).Msg("Failed to persist log event")
	}
}

func clipLogContent(text string, maxChars int) (string, map[string]interface{}) {
	if text == "" {
		return "", nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return text, nil
	}
	head := maxChars * 7 / 10
	tail := maxChars - head
	clipped := text[:head] + "\n...\n" + text[len(text)-tail:]
	return clipped, map[string]interface{}{
		"clipped":        true,
		"original_chars": len(text),
		"stored_chars":   len(clipped),
	}
}
