package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/relevance"
)

// ClaudeService implements the LLMService interface using the Anthropic
// Claude API. All generation methods are fail-soft: provider failures
// are recorded on the trace and surfaced as nil results so the
// aggregation pipeline falls back to deterministic composition.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
	enabled   bool

	mu    sync.Mutex
	trace models.LLMTrace
	cache map[string]string // prompt hash -> raw output
}

// NewClaudeService creates a new Claude LLM service instance. A missing
// API key produces a disabled (not failed) service.
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) *ClaudeService {
	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-3-5-haiku-20241022"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		timeout:   timeout,
		maxTokens: maxTokens,
		enabled:   claudeConfig.APIKey != "",
		cache:     make(map[string]string),
	}

	if service.enabled {
		client := anthropic.NewClient(
			option.WithAPIKey(claudeConfig.APIKey),
		)
		service.client = &client
		logger.Debug().
			Str("model", claudeConfig.Model).
			Dur("timeout", timeout).
			Int("max_tokens", maxTokens).
			Msg("Claude LLM service initialized")
	} else {
		logger.Info().Msg("Claude LLM service disabled (no API key configured)")
	}

	return service
}

// Enabled reports whether the service is configured with an API key
func (s *ClaudeService) Enabled() bool {
	return s.enabled
}

// Trace returns a snapshot of the last exchange for diagnostics
func (s *ClaudeService) Trace() models.LLMTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace
}

// GenerateArticle produces a structured card narrative from the prompt
func (s *ClaudeService) GenerateArticle(ctx context.Context, prompt string) (*models.GeneratedArticle, error) {
	output := s.complete(ctx, prompt)
	if output == "" {
		return nil, nil
	}

	var raw struct {
		Title      string      `json:"title"`
		Summary    string      `json:"summary"`
		Article    string      `json:"article"`
		Body       string      `json:"article_text"`
		Importance interface{} `json:"importance"`
		ImpScore   interface{} `json:"importance_score"`
		Impacts    []string    `json:"impacts"`
		References []string    `json:"references"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(output)), &raw); err != nil {
		s.recordError(fmt.Errorf("unparseable article response: %w", err))
		return nil, nil
	}

	body := raw.Article
	if body == "" {
		body = raw.Body
	}
	if strings.TrimSpace(raw.Title) == "" && strings.TrimSpace(body) == "" {
		return nil, nil
	}

	importance := relevance.NormalizeImportance(raw.Importance)
	if importance == 0 {
		importance = relevance.NormalizeImportance(raw.ImpScore)
	}

	return &models.GeneratedArticle{
		Title:      strings.TrimSpace(raw.Title),
		Summary:    strings.TrimSpace(raw.Summary),
		Article:    strings.TrimSpace(body),
		Importance: importance,
		Impacts:    raw.Impacts,
		References: raw.References,
	}, nil
}

// FilterItem decides whether a borderline item is relevant market news
func (s *ClaudeService) FilterItem(ctx context.Context, prompt string) (*models.FilterDecision, error) {
	output := s.complete(ctx, prompt)
	if output == "" {
		return nil, nil
	}

	var raw struct {
		Decision   string      `json:"decision"`
		Importance interface{} `json:"importance"`
		ImpScore   interface{} `json:"importance_score"`
		Confidence float64     `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(output)), &raw); err != nil {
		s.recordError(fmt.Errorf("unparseable filter response: %w", err))
		return nil, nil
	}

	accepted, ok := relevance.NormalizeDecision(raw.Decision)
	if !ok {
		return nil, nil
	}

	importance := relevance.NormalizeImportance(raw.Importance)
	if importance == 0 {
		importance = relevance.NormalizeImportance(raw.ImpScore)
	}
	if importance == 0 {
		importance = 1
	}

	return &models.FilterDecision{
		Accept:     accepted,
		Importance: importance,
		Confidence: relevance.ClampConfidence(raw.Confidence),
	}, nil
}

// GenerateText produces free-form text for the economist passes
func (s *ClaudeService) GenerateText(ctx context.Context, prompt string) (string, error) {
	return strings.TrimSpace(s.complete(ctx, prompt)), nil
}

// complete runs one completion, serving repeated prompts from the
// in-memory cache so retried runs do not burn provider quota.
func (s *ClaudeService) complete(ctx context.Context, prompt string) string {
	if !s.enabled || strings.TrimSpace(prompt) == "" {
		return ""
	}

	key := promptHash(prompt)
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		// The trace must describe this exchange, not the previous one
		s.trace = models.LLMTrace{
			LastModel:      s.config.Model,
			LastStatusCode: 200,
			LastOutputText: clipText(cached, 4000),
		}
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Claude completion failed")
		s.recordError(err)
		return ""
	}

	var output strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			output.WriteString(block.Text)
		}
	}
	text := output.String()

	s.mu.Lock()
	s.trace = models.LLMTrace{
		LastModel:      s.config.Model,
		LastStatusCode: 200,
		LastOutputText: clipText(text, 4000),
	}
	s.cache[key] = text
	s.mu.Unlock()

	s.logger.Debug().
		Int("prompt_length", len(prompt)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion finished")

	return text
}

func (s *ClaudeService) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace.LastModel = s.config.Model
	s.trace.LastError = clipText(err.Error(), 2000)
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func clipText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// extractJSONObject strips markdown code fences and returns the first
// top-level JSON object in the text, so chatty model output around the
// payload does not break parsing.
func extractJSONObject(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	if start < 0 {
		return cleaned
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return cleaned[start : i+1]
				}
			}
		}
	}
	return cleaned[start:]
}

var _ interfaces.LLMService = (*ClaudeService)(nil)
