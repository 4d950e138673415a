package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shopping-assistant/internal/retrieval"
)

func TestValidateAnswerRejectsShort(t *testing.T) {
	for _, answer := range []string{"", "ok", "yes.", "   short   "} {
		v := ValidateAnswer(answer, "some context")
		assert.False(t, v.Valid, "answer %q", answer)
		assert.Equal(t, "answer too short", v.Reason)
	}
}

func TestValidateAnswerSignals(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		context   string
		wantValid bool
	}{
		{
			name:      "specific answer with digits",
			answer:    "You can return items within 30 days for a full refund.",
			context:   "return policy context",
			wantValid: true,
		},
		{
			name:      "good-faith refusal with empty context",
			answer:    "I don't have that information right now.",
			context:   "",
			wantValid: true,
		},
		{
			name:      "refusal against sentinel context",
			answer:    "I don't have that information right now.",
			context:   retrieval.NoRelevantInformation,
			wantValid: true,
		},
		{
			name:      "vague and formal",
			answer:    "Generally, based on the provided docs, it depends.",
			context:   "rich context",
			wantValid: false,
		},
		{
			name:      "plain conversational answer",
			answer:    "We offer free shipping on orders over a certain amount.",
			context:   "shipping context",
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateAnswer(tt.answer, tt.context)
			assert.Equal(t, tt.wantValid, v.Valid, "score=%d reason=%s", v.Score, v.Reason)
		})
	}
}

func TestValidateAnswerFormalDoublePenalty(t *testing.T) {
	plain := ValidateAnswer("Returns are accepted for all unused items in packaging.", "ctx")
	formal := ValidateAnswer("Based on the provided text, returns are accepted for all unused items.", "ctx")

	// formal phrasing loses the +1 bonus and takes a -1 penalty
	assert.Equal(t, plain.Score-2, formal.Score)
}

func TestValidationConfidence(t *testing.T) {
	tests := []struct {
		score   int
		quality retrieval.Quality
		want    Confidence
	}{
		{6, retrieval.QualityHigh, ConfidenceHigh},
		{4, retrieval.QualityHigh, ConfidenceHigh},
		{3, retrieval.QualityHigh, ConfidenceMedium},
		{2, retrieval.QualityHigh, ConfidenceLow},
		{6, retrieval.QualityLow, ConfidenceLow},
		{6, retrieval.QualityNone, ConfidenceNone},
		{3, retrieval.QualityNone, ConfidenceNone},
	}

	for _, tt := range tests {
		v := Validation{Score: tt.score}
		assert.Equal(t, tt.want, v.Confidence(tt.quality), "score=%d quality=%s", tt.score, tt.quality)
	}
}

func TestCapConfidenceNeverRaises(t *testing.T) {
	assert.Equal(t, ConfidenceLow, capConfidence(ConfidenceHigh, ConfidenceLow))
	assert.Equal(t, ConfidenceLow, capConfidence(ConfidenceLow, ConfidenceHigh))
	assert.Equal(t, ConfidenceNone, capConfidence(ConfidenceMedium, ConfidenceNone))
}
