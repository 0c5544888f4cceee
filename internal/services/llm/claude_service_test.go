package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/models"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"fenced json", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading chatter", `Here is the result: {"a": 1} hope it helps`, `{"a": 1}`},
		{"nested objects", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"braces in strings", `{"a": "}{"}`, `{"a": "}{"}`},
		{"no object", "no json here", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONObject(tt.input))
		})
	}
}

func TestDisabledServiceReturnsNilResults(t *testing.T) {
	cfg := &common.ClaudeConfig{Timeout: "1s"}
	service := NewClaudeService(cfg, testLogger())

	assert.False(t, service.Enabled())

	article, err := service.GenerateArticle(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Nil(t, article)

	decision, err := service.FilterItem(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Nil(t, decision)

	text, err := service.GenerateText(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestNewClaudeServiceDefaults(t *testing.T) {
	cfg := &common.ClaudeConfig{APIKey: "test-key", Timeout: "bogus"}
	service := NewClaudeService(cfg, testLogger())

	assert.True(t, service.Enabled())
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Model)
	assert.Equal(t, 2048, service.maxTokens)
}

func TestCompleteCacheHitRefreshesTrace(t *testing.T) {
	cfg := &common.ClaudeConfig{APIKey: "test-key", Timeout: "1s"}
	service := NewClaudeService(cfg, testLogger())

	service.mu.Lock()
	service.cache[promptHash("prompt")] = `{"ok": true}`
	service.trace = models.LLMTrace{LastOutputText: "stale", LastError: "old failure"}
	service.mu.Unlock()

	assert.Equal(t, `{"ok": true}`, service.complete(context.Background(), "prompt"))

	// The trace describes the cached exchange, not the prior one
	trace := service.Trace()
	assert.Equal(t, `{"ok": true}`, trace.LastOutputText)
	assert.Equal(t, 200, trace.LastStatusCode)
	assert.Empty(t, trace.LastError)
}

func TestClipText(t *testing.T) {
	assert.Equal(t, "abc", clipText("abc", 10))
	assert.Equal(t, "abcde", clipText("abcdefgh", 5))
}

func TestPromptHashStable(t *testing.T) {
	assert.Equal(t, promptHash("same"), promptHash("same"))
	assert.NotEqual(t, promptHash("one"), promptHash("two"))
}
