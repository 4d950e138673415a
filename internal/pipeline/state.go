// Package pipeline runs one user question through classification, conditional
// retrieval, a per-intent answer strategy and validation.
package pipeline

import (
	"shopping-assistant/internal/intent"
	"shopping-assistant/internal/retrieval"
)

// Confidence labels how much trust the pipeline places in an answer.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceNone:   0,
	ConfidenceLow:    1,
	ConfidenceMedium: 2,
	ConfidenceHigh:   3,
}

// capConfidence forces the confidence down to at most the cap. It never
// raises it.
func capConfidence(c, limit Confidence) Confidence {
	if confidenceRank[c] > confidenceRank[limit] {
		return limit
	}
	return c
}

// QualityMetrics carries the validator's signals for the final answer. Only
// FAQ answers are validated, so the field stays nil for other intents.
type QualityMetrics struct {
	Score        int  `json:"score"`
	HasRefusal   bool `json:"has_refusal"`
	IsVague      bool `json:"is_vague"`
	IsFormal     bool `json:"is_formal"`
	HasSpecifics bool `json:"has_specifics"`
}

// State is the accumulated result of one run. Each run gets a fresh State;
// nothing here is shared between concurrent runs.
type State struct {
	Question         string            `json:"question"`
	Intent           intent.Intent     `json:"intent"`
	Context          []string          `json:"context,omitempty"`
	Answer           string            `json:"answer"`
	Confidence       Confidence        `json:"confidence"`
	RetrievalQuality retrieval.Quality `json:"retrieval_quality"`
	ContextCount     int               `json:"context_count"`
	QualityMetrics   *QualityMetrics   `json:"quality_metrics,omitempty"`
	ValidationFailed bool              `json:"validation_failed"`
	ValidationReason string            `json:"validation_reason,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// TaggedError is a degradable node failure. The tag is a short machine code
// like "retrieval_error"; it is recorded on the state, never propagated.
type TaggedError struct {
	Tag     string
	Message string
}

func (e *TaggedError) Error() string {
	return e.Tag + ": " + e.Message
}

// Result is the outcome of one pipeline node: a state update, optionally
// paired with a tagged error when the node degraded. The update always
// applies; the error is bookkeeping.
type Result struct {
	Update func(*State)
	Err    *TaggedError
}

// Ok builds a clean node result.
func Ok(update func(*State)) Result {
	return Result{Update: update}
}

// Degraded builds a node result that applies a fallback update and records
// the tagged cause.
func Degraded(tag, message string, update func(*State)) Result {
	return Result{Update: update, Err: &TaggedError{Tag: tag, Message: message}}
}

// apply mutates the state with the node's update and records a degradation.
func (s *State) apply(r Result) {
	if r.Update != nil {
		r.Update(s)
	}
	if r.Err != nil {
		if s.Error != "" {
			s.Error += "; "
		}
		s.Error += r.Err.Error()
	}
}
