package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"shopping-assistant/internal/retrieval"
)

// minAnswerLength rejects degenerate answers outright.
const minAnswerLength = 10

var refusalPhrases = []string{
	"i don't know",
	"don't have that information",
	"don't have information",
	"don't have enough information",
	"i'm not sure",
	"no information available",
}

var vaguePhrases = []string{
	"generally",
	"typically",
	"it depends",
	"usually",
	"in most cases",
	"may vary",
}

var formalPhrases = []string{
	"based on the provided",
	"according to document",
	"according to the document",
	"the context states",
	"as mentioned in the document",
}

var specificWords = []string{
	"offer", "offers",
	"include", "includes", "included",
	"accept", "accepts",
	"provide", "provides",
	"within",
	"available",
}

// Validation is the validator's verdict on a generated FAQ answer.
type Validation struct {
	Valid        bool
	Reason       string
	Score        int
	HasRefusal   bool
	IsVague      bool
	IsFormal     bool
	HasSpecifics bool
}

// ValidateAnswer scores a generated answer against quality heuristics.
// Context is "effectively empty" when blank or equal to the no-information
// sentinel; a refusal against empty context is a good-faith answer.
func ValidateAnswer(answer, context string) Validation {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < minAnswerLength {
		return Validation{Valid: false, Reason: "answer too short"}
	}

	lower := strings.ToLower(trimmed)
	contextEmpty := strings.TrimSpace(context) == "" || context == retrieval.NoRelevantInformation

	v := Validation{
		HasRefusal:   containsAny(lower, refusalPhrases),
		IsVague:      containsAny(lower, vaguePhrases),
		IsFormal:     containsAny(lower, formalPhrases),
		HasSpecifics: hasSpecifics(lower),
	}

	if v.HasSpecifics {
		v.Score += 2
	}
	if v.HasRefusal && contextEmpty {
		v.Score += 2
	}
	if !v.IsVague {
		v.Score += 2
	}
	if v.IsFormal {
		v.Score--
	} else {
		v.Score++
	}
	if len(trimmed) > 30 {
		v.Score++
	}

	v.Valid = v.Score >= 2 || (v.HasRefusal && v.Score >= 1)
	if !v.Valid {
		v.Reason = fmt.Sprintf("low quality score %d (vague=%t formal=%t specifics=%t)",
			v.Score, v.IsVague, v.IsFormal, v.HasSpecifics)
	}
	return v
}

// Metrics exports the verdict's signals for the pipeline state.
func (v Validation) Metrics() *QualityMetrics {
	return &QualityMetrics{
		Score:        v.Score,
		HasRefusal:   v.HasRefusal,
		IsVague:      v.IsVague,
		IsFormal:     v.IsFormal,
		HasSpecifics: v.HasSpecifics,
	}
}

// Confidence maps the score to a confidence level, then caps it by the
// retrieval quality: weak retrieval evidence can only pull confidence down.
func (v Validation) Confidence(quality retrieval.Quality) Confidence {
	c := ConfidenceLow
	switch {
	case v.Score >= 4:
		c = ConfidenceHigh
	case v.Score >= 3:
		c = ConfidenceMedium
	}

	switch quality {
	case retrieval.QualityLow:
		c = capConfidence(c, ConfidenceLow)
	case retrieval.QualityNone:
		c = capConfidence(c, ConfidenceNone)
	}
	return c
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// hasSpecifics matches action words as whole tokens so that, say, "provided"
// inside a citation phrase does not count as a specific.
func hasSpecifics(lower string) bool {
	if strings.IndexFunc(lower, unicode.IsDigit) >= 0 {
		return true
	}
	if len(lower) > 80 {
		return true
	}

	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	for _, w := range specificWords {
		if words[w] {
			return true
		}
	}
	return false
}
