package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreFinancialText(t *testing.T) {
	text := "The central bank raised its interest rate target. Inflation remains elevated."
	title := "Fed signals further rate hikes"

	score := Score(text, title)
	assert.GreaterOrEqual(t, score, 4, "clearly financial text must pass the ingestion floor")
}

func TestScoreRejectsEntertainment(t *testing.T) {
	text := "The actress announced her wedding at a resort after the concert tour."
	title := "Celebrity news roundup"

	assert.Less(t, Score(text, title), 4)
}

func TestScoreTitleSalienceBonus(t *testing.T) {
	base := Score("markets were quiet today", "morning briefing")
	salient := Score("markets were quiet today", "inflation briefing")
	assert.Greater(t, salient, base)
}

func TestScoreShortItemBonus(t *testing.T) {
	short := Score("Fed cuts rates.", "")
	long := Score("Fed cuts rates. "+stringOfLen(300), "")
	assert.Greater(t, short, long)
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

func TestRelevantSentences(t *testing.T) {
	text := "The weather was mild. Treasury yields climbed sharply. Fans enjoyed the show."
	picked := RelevantSentences(text)
	assert.Contains(t, picked, "Treasury yields climbed sharply")
	assert.NotContains(t, picked, "weather")
}

func TestRelevantSentencesEmpty(t *testing.T) {
	assert.Equal(t, "", RelevantSentences(""))
	assert.Equal(t, "", RelevantSentences("Nothing about finance here at all"))
}

func TestInferImportanceHigh(t *testing.T) {
	score, reason := InferImportance("the central bank moved on interest rate policy", 3)
	assert.Equal(t, 3, score)
	assert.Contains(t, reason, "Global cross-asset")
}

func TestInferImportanceMedium(t *testing.T) {
	score, reason := InferImportance("strong earnings and new guidance from the sector", 2)
	assert.Equal(t, 2, score)
	assert.Contains(t, reason, "market impact expected via")
}

func TestInferImportanceBreadthBump(t *testing.T) {
	low, _ := InferImportance("a quiet day in local news", 2)
	bumped, _ := InferImportance("a quiet day in local news", 10)
	assert.Equal(t, 1, low)
	assert.Equal(t, 2, bumped)
}

func TestInferImportanceMonotonicInRecords(t *testing.T) {
	text := "earnings season guidance"
	few, _ := InferImportance(text, 2)
	many, _ := InferImportance(text, 12)
	assert.GreaterOrEqual(t, many, few)
}

func TestNormalizeImportance(t *testing.T) {
	assert.Equal(t, 1, NormalizeImportance("low"))
	assert.Equal(t, 2, NormalizeImportance("Moderate"))
	assert.Equal(t, 3, NormalizeImportance("systemic"))
	assert.Equal(t, 3, NormalizeImportance(7))
	assert.Equal(t, 1, NormalizeImportance(float64(0)))
	assert.Equal(t, 2, NormalizeImportance("2.4"))
	assert.Equal(t, 0, NormalizeImportance("unknown"))
	assert.Equal(t, 0, NormalizeImportance(nil))
}

func TestNormalizeDecision(t *testing.T) {
	accepted, ok := NormalizeDecision(" Accept ")
	assert.True(t, ok)
	assert.True(t, accepted)

	accepted, ok = NormalizeDecision("irrelevant")
	assert.True(t, ok)
	assert.False(t, accepted)

	_, ok = NormalizeDecision("maybe")
	assert.False(t, ok)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-2))
	assert.Equal(t, 1.0, ClampConfidence(3.5))
	assert.Equal(t, 0.4, ClampConfidence(0.4))
}
