package agent

// llmBudget tracks the per-run LLM request allowance. A reserve can be
// held back so filter calls never starve article generation.
type llmBudget struct {
	limit         int
	used          int
	warnedExhaust bool
}

func newLLMBudget(limit int) *llmBudget {
	if limit < 0 {
		limit = 0
	}
	return &llmBudget{limit: limit}
}

func (b *llmBudget) remaining() int {
	if b.used >= b.limit {
		return 0
	}
	return b.limit - b.used
}

// consume takes one request from the budget unless doing so would dip
// into the reserve. The first refusal flips warnedExhaust so the caller
// logs the exhaustion exactly once per run.
func (b *llmBudget) consume(reserve int) bool {
	if reserve < 0 {
		reserve = 0
	}
	if b.remaining() <= reserve {
		return false
	}
	b.used++
	return true
}

// shouldWarnExhausted reports whether the exhaustion warning is still
// owed, and marks it emitted.
func (b *llmBudget) shouldWarnExhausted() bool {
	if b.warnedExhaust {
		return false
	}
	b.warnedExhaust = true
	return true
}
