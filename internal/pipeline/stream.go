package pipeline

import (
	"context"
	"strings"
	"time"

	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/intent"
	"shopping-assistant/internal/retrieval"
)

// Event chunk types emitted by RunStream, in order: intent, metadata, zero or
// more content chunks, final, complete. An error event replaces content/final
// when the run cannot proceed.
const (
	EventIntent   = "intent"
	EventMetadata = "metadata"
	EventContent  = "content"
	EventFinal    = "final"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one chunk of a streaming run.
type Event struct {
	Type    string                 `json:"chunk_type"`
	Content string                 `json:"content,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// RunStream executes the same state machine as Run but emits progress events
// as they become available. FAQ answers with usable context stream token
// chunks from the generation backend; other intents emit a single final
// answer. The channel closes after the complete event or when ctx is
// cancelled.
func (p *Pipeline) RunStream(ctx context.Context, question string) (<-chan Event, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &TaggedError{Tag: "input_error", Message: "question is empty"}
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		start := time.Now()
		state := &State{Question: question, Confidence: ConfidenceNone}

		state.apply(p.classifyNode(ctx, state))
		metrics.QueriesTotal.WithLabelValues(string(state.Intent)).Inc()
		if !emit(ctx, events, Event{Type: EventIntent, Data: map[string]interface{}{"intent": string(state.Intent)}}) {
			return
		}

		if state.Intent.NeedsRetrieval() {
			state.apply(p.retrieveNode(ctx, state))
		}
		if !emit(ctx, events, Event{Type: EventMetadata, Data: map[string]interface{}{
			"retrieval_quality": string(state.RetrievalQuality),
			"context_count":     state.ContextCount,
		}}) {
			return
		}

		joined := strings.Join(state.Context, "\n\n")
		if state.Intent == intent.FAQ && len(state.Context) > 0 && joined != retrieval.NoRelevantInformation {
			p.streamFAQ(ctx, events, state, joined)
		} else {
			state.apply(p.answerNode(ctx, state))
		}

		if !emit(ctx, events, Event{Type: EventFinal, Data: map[string]interface{}{
			"answer":            state.Answer,
			"confidence":        string(state.Confidence),
			"retrieval_quality": string(state.RetrievalQuality),
			"quality_metrics":   state.QualityMetrics,
			"validation_failed": state.ValidationFailed,
			"error":             state.Error,
		}}) {
			return
		}

		elapsed := time.Since(start)
		metrics.PipelineDuration.WithLabelValues(string(state.Intent)).Observe(elapsed.Seconds())
		if p.obs != nil {
			p.obs.RecordRun(ctx, string(state.Intent))
			p.obs.RecordRunDuration(ctx, elapsed, string(state.Intent))
		}

		emit(ctx, events, Event{Type: EventComplete})
	}()

	return events, nil
}

// streamFAQ forwards generation chunks as content events, then validates the
// assembled answer exactly like the batch path.
func (p *Pipeline) streamFAQ(ctx context.Context, events chan<- Event, state *State, joined string) {
	chunks, err := p.generator.GenerateStream(ctx, faqMessages(state.Question, joined))
	if err != nil {
		metrics.NodeFailures.WithLabelValues("answer_error").Inc()
		state.apply(Degraded("answer_error", err.Error(), func(s *State) {
			s.Answer = faqFallback
			s.Confidence = ConfidenceLow
		}))
		emit(ctx, events, Event{Type: EventError, Data: map[string]interface{}{"error": state.Error}})
		return
	}

	var full strings.Builder
	for chunk := range chunks {
		full.WriteString(chunk)
		if !emit(ctx, events, Event{Type: EventContent, Content: chunk}) {
			return
		}
	}

	answer := strings.TrimSpace(full.String())
	if answer == "" {
		metrics.NodeFailures.WithLabelValues("answer_error").Inc()
		state.apply(Degraded("answer_error", "empty generation stream", func(s *State) {
			s.Answer = faqFallback
			s.Confidence = ConfidenceLow
		}))
		return
	}

	state.apply(p.validateFAQ(answer, joined, state.RetrievalQuality))
}

// emit sends unless the caller has gone away.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
