package models

// GeneratedArticle is the structured output of an LLM article generation call
type GeneratedArticle struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Article    string   `json:"article"`
	Importance int      `json:"importance"`
	Impacts    []string `json:"impacts"`
	References []string `json:"references"`
}

// FilterDecision is the structured output of an LLM relevance filter call
type FilterDecision struct {
	Accept     bool    `json:"accept"`
	Importance int     `json:"importance"`
	Confidence float64 `json:"confidence"`
}

// LLMTrace captures the last LLM exchange for diagnostics
type LLMTrace struct {
	LastModel      string `json:"last_model,omitempty"`
	LastStatusCode int    `json:"last_status_code,omitempty"`
	LastError      string `json:"last_error,omitempty"`
	LastOutputText string `json:"last_output_text,omitempty"`
}
