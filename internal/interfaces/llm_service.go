package interfaces

import (
	"context"

	"github.com/ternarybob/nousnews/internal/models"
)

// LLMService - interface for language model assisted generation.
// All methods are fail-soft: a nil result with a nil error means the
// service is disabled or the provider response was unusable, and the
// caller must fall back to deterministic composition.
type LLMService interface {
	// Enabled reports whether the service is configured with an API key
	Enabled() bool

	// GenerateArticle produces a structured card narrative from the prompt
	GenerateArticle(ctx context.Context, prompt string) (*models.GeneratedArticle, error)

	// FilterItem decides whether a borderline item is relevant market news
	FilterItem(ctx context.Context, prompt string) (*models.FilterDecision, error)

	// GenerateText produces free-form text (economist signal extraction and rewrite)
	GenerateText(ctx context.Context, prompt string) (string, error)

	// Trace returns a snapshot of the last exchange for diagnostics
	Trace() models.LLMTrace
}
