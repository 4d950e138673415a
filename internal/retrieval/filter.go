package retrieval

import (
	"strings"
	"unicode"
)

// Quality labels the outcome of context filtering for a single run.
type Quality string

const (
	QualityHigh        Quality = "high"
	QualityLow         Quality = "low"
	QualityNone        Quality = "none"
	QualityError       Quality = "error"
	QualityNoRetriever Quality = "no_retriever"
)

// NoRelevantInformation is the sentinel context used when nothing survives
// filtering. Strategies compare against it to short-circuit generation.
const NoRelevantInformation = "No relevant information found."

const (
	// DefaultMinRelevance is the keyword-overlap threshold below which a
	// passage is dropped.
	DefaultMinRelevance = 0.3

	// DefaultMaxPassages caps how many passages feed one prompt.
	DefaultMaxPassages = 3

	// minPassageLength drops noise passages.
	minPassageLength = 20

	// dupPrefixLength is the prefix used for near-duplicate detection.
	dupPrefixLength = 50
)

// Filter ranks and prunes raw retrieved passages for one question.
type Filter struct {
	minRelevance float64
	maxPassages  int
}

// NewFilter creates a Filter. Non-positive arguments fall back to defaults.
func NewFilter(minRelevance float64, maxPassages int) *Filter {
	if minRelevance <= 0 {
		minRelevance = DefaultMinRelevance
	}
	if maxPassages <= 0 {
		maxPassages = DefaultMaxPassages
	}
	return &Filter{minRelevance: minRelevance, maxPassages: maxPassages}
}

// FilterResult carries the surviving passages and the quality label.
type FilterResult struct {
	Passages []string
	Quality  Quality
}

// Joined returns the passages joined for prompting, or the sentinel when
// nothing survived.
func (r FilterResult) Joined() string {
	if len(r.Passages) == 0 {
		return NoRelevantInformation
	}
	return strings.Join(r.Passages, "\n\n")
}

// Apply filters raw passages for the question: short passages are dropped,
// relevance is the fraction of the question's word set found in the passage,
// near-duplicates (shared 50-char prefix substring) are dropped, and at most
// maxPassages survive in original retrieval order.
func (f *Filter) Apply(question string, passages []RetrievedPassage) FilterResult {
	questionWords := wordSet(question)

	var accepted []string
	for _, p := range passages {
		if len(accepted) >= f.maxPassages {
			break
		}

		content := strings.TrimSpace(p.Content)
		if len(content) < minPassageLength {
			continue
		}

		if relevance(questionWords, content) < f.minRelevance {
			continue
		}

		if isNearDuplicate(content, accepted) {
			continue
		}

		accepted = append(accepted, content)
	}

	quality := QualityNone
	switch {
	case len(accepted) >= 2:
		quality = QualityHigh
	case len(accepted) == 1:
		quality = QualityLow
	}

	return FilterResult{Passages: accepted, Quality: quality}
}

// relevance is the fraction of the question's distinct words that appear in
// the passage, case-insensitive.
func relevance(questionWords map[string]bool, passage string) float64 {
	if len(questionWords) == 0 {
		return 0
	}

	passageWords := wordSet(passage)
	overlap := 0
	for w := range questionWords {
		if passageWords[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(questionWords))
}

// wordSet lower-cases and tokenizes on non-alphanumeric boundaries so
// trailing punctuation does not mask overlap ("policy?" matches "policy").
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			set[b.String()] = true
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

// isNearDuplicate reports whether the candidate's prefix appears inside any
// already-accepted passage.
func isNearDuplicate(candidate string, accepted []string) bool {
	prefix := candidate
	if len(prefix) > dupPrefixLength {
		prefix = prefix[:dupPrefixLength]
	}
	for _, a := range accepted {
		if strings.Contains(a, prefix) {
			return true
		}
	}
	return false
}
