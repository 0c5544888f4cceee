package relevance

import (
	"strings"
)

var acceptedDecisions = map[string]bool{
	"accept": true, "accepted": true, "include": true,
	"relevant": true, "yes": true, "allow": true,
}

var rejectedDecisions = map[string]bool{
	"reject": true, "rejected": true, "exclude": true,
	"irrelevant": true, "no": true, "drop": true,
}

// NormalizeDecision maps a free-form filter verdict onto accept/reject.
// ok is false for verdicts outside both synonym sets, which callers
// treat as no decision at all.
func NormalizeDecision(decision string) (accepted bool, ok bool) {
	d := strings.ToLower(strings.TrimSpace(decision))
	if acceptedDecisions[d] {
		return true, true
	}
	if rejectedDecisions[d] {
		return false, true
	}
	return false, false
}

// ClampConfidence bounds a model confidence value to [0, 1]
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
