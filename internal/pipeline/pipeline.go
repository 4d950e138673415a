package pipeline

import (
	"context"
	"strings"
	"time"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/intent"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/retrieval"
)

// Classifier is the intent step of the pipeline.
type Classifier interface {
	Classify(ctx context.Context, question string) (intent.Intent, error)
}

// Config carries the pipeline tunables.
type Config struct {
	TopK int
}

// Pipeline orchestrates one question: classify, conditionally retrieve and
// filter context, answer with the intent's strategy, validate FAQ answers.
// A Pipeline is safe for concurrent use; each run has its own State.
type Pipeline struct {
	config     Config
	classifier Classifier
	retriever  retrieval.Retriever
	filter     *retrieval.Filter
	generator  llm.Generator
	obs        *observability.Observability
	logger     logger.Logger
}

// New wires the pipeline. retriever may be nil, in which case retrieval
// branches mark the run no_retriever and degrade gracefully. obs may be nil.
func New(cfg Config, classifier Classifier, retriever retrieval.Retriever, filter *retrieval.Filter, generator llm.Generator, obs *observability.Observability, log logger.Logger) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Pipeline{
		config:     cfg,
		classifier: classifier,
		retriever:  retriever,
		filter:     filter,
		generator:  generator,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Run executes the full state machine for one question and returns the final
// state. Capability failures degrade into fallback answers; Run only returns
// an error for contract violations (empty question).
func (p *Pipeline) Run(ctx context.Context, question string) (*State, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &TaggedError{Tag: "input_error", Message: "question is empty"}
	}

	start := time.Now()
	state := &State{Question: question, Confidence: ConfidenceNone}

	state.apply(p.classifyNode(ctx, state))
	metrics.QueriesTotal.WithLabelValues(string(state.Intent)).Inc()

	if state.Intent.NeedsRetrieval() {
		state.apply(p.retrieveNode(ctx, state))
	}

	state.apply(p.answerNode(ctx, state))

	elapsed := time.Since(start)
	metrics.PipelineDuration.WithLabelValues(string(state.Intent)).Observe(elapsed.Seconds())
	if p.obs != nil {
		p.obs.RecordRun(ctx, string(state.Intent))
		p.obs.RecordRunDuration(ctx, elapsed, string(state.Intent))
	}

	p.logger.Info("pipeline run completed", map[string]interface{}{
		"intent":            string(state.Intent),
		"confidence":        string(state.Confidence),
		"retrieval_quality": string(state.RetrievalQuality),
		"context_count":     state.ContextCount,
		"validation_failed": state.ValidationFailed,
		"error":             state.Error,
		"duration_ms":       elapsed.Milliseconds(),
	})

	return state, nil
}

func (p *Pipeline) classifyNode(ctx context.Context, st *State) Result {
	classified, err := p.classifier.Classify(ctx, st.Question)
	if err != nil {
		metrics.NodeFailures.WithLabelValues("intent_error").Inc()
		return Degraded("intent_error", err.Error(), func(s *State) {
			s.Intent = classified
		})
	}
	return Ok(func(s *State) {
		s.Intent = classified
	})
}

func (p *Pipeline) retrieveNode(ctx context.Context, st *State) Result {
	if p.retriever == nil {
		return Ok(func(s *State) {
			s.RetrievalQuality = retrieval.QualityNoRetriever
		})
	}

	passages, err := p.retriever.Search(ctx, st.Question, p.config.TopK)
	if err != nil {
		metrics.NodeFailures.WithLabelValues("retrieval_error").Inc()
		metrics.RetrievalQuality.WithLabelValues(string(retrieval.QualityError)).Inc()
		return Degraded("retrieval_error", err.Error(), func(s *State) {
			s.Context = nil
			s.ContextCount = 0
			s.RetrievalQuality = retrieval.QualityError
		})
	}

	filtered := p.filter.Apply(st.Question, passages)
	metrics.RetrievalQuality.WithLabelValues(string(filtered.Quality)).Inc()
	return Ok(func(s *State) {
		s.Context = filtered.Passages
		s.ContextCount = len(filtered.Passages)
		s.RetrievalQuality = filtered.Quality
	})
}

func (p *Pipeline) answerNode(ctx context.Context, st *State) Result {
	var result Result
	switch st.Intent {
	case intent.Greeting:
		result = p.greet(ctx, st)
	case intent.Sales:
		result = p.sell(ctx, st)
	case intent.ProductInquiry:
		result = p.inquire(ctx, st)
	case intent.FAQ:
		result = p.answerFAQ(ctx, st)
	default:
		result = p.answerOther(ctx, st)
	}

	if result.Err != nil {
		metrics.NodeFailures.WithLabelValues(result.Err.Tag).Inc()
	}
	return result
}
