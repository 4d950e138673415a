package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/intent"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/retrieval"
)

type fakeClassifier struct {
	intent intent.Intent
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (intent.Intent, error) {
	return f.intent, f.err
}

type fakeGenerator struct {
	answer    string
	err       error
	chunks    []string
	streamErr error
	calls     int
}

func (f *fakeGenerator) Generate(_ context.Context, _ []llm.Message) (string, error) {
	f.calls++
	return f.answer, f.err
}

func (f *fakeGenerator) GenerateStream(_ context.Context, _ []llm.Message) (<-chan string, error) {
	f.calls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, c := range f.chunks {
			ch <- c
		}
	}()
	return ch, nil
}

type fakeRetriever struct {
	passages []retrieval.RetrievedPassage
	err      error
	calls    int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, _ int) ([]retrieval.RetrievedPassage, error) {
	f.calls++
	return f.passages, f.err
}

func (f *fakeRetriever) AddDocuments(_ context.Context, _ []retrieval.Document) error {
	return nil
}

func newTestPipeline(c Classifier, r retrieval.Retriever, g llm.Generator) *Pipeline {
	return New(Config{TopK: 5}, c, r, retrieval.NewFilter(0.3, 3), g, nil, logger.NewNoOpLogger())
}

func returnPolicyPassages() []retrieval.RetrievedPassage {
	return []retrieval.RetrievedPassage{
		{ID: "1", Content: "Our return policy allows returns within 30 days of purchase for a full refund."},
		{ID: "2", Content: "Items under the return policy must be unused and in original packaging."},
		{ID: "3", Content: "Refunds under the return policy are processed within 5 business days."},
	}
}

func TestRunGreeting(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{answer: "Hello! Welcome in, what can I help you find today?"}
	p := newTestPipeline(&fakeClassifier{intent: intent.Greeting}, retriever, generator)

	state, err := p.Run(context.Background(), "Hello!")
	require.NoError(t, err)

	assert.Equal(t, intent.Greeting, state.Intent)
	assert.Equal(t, 0, retriever.calls)
	assert.Equal(t, ConfidenceHigh, state.Confidence)
	assert.NotEmpty(t, state.Answer)
	assert.Nil(t, state.QualityMetrics)
	assert.Empty(t, state.Error)
}

func TestRunFAQWithGoodContext(t *testing.T) {
	retriever := &fakeRetriever{passages: returnPolicyPassages()}
	generator := &fakeGenerator{answer: "You can return items within 30 days for a full refund, as long as they are unused."}
	p := newTestPipeline(&fakeClassifier{intent: intent.FAQ}, retriever, generator)

	state, err := p.Run(context.Background(), "What is your return policy?")
	require.NoError(t, err)

	assert.Equal(t, retrieval.QualityHigh, state.RetrievalQuality)
	assert.False(t, state.ValidationFailed)
	assert.Contains(t, []Confidence{ConfidenceHigh, ConfidenceMedium}, state.Confidence)
	assert.Equal(t, generator.answer, state.Answer)

	require.NotNil(t, state.QualityMetrics)
	assert.True(t, state.QualityMetrics.HasSpecifics)
	assert.GreaterOrEqual(t, state.QualityMetrics.Score, 4)
}

func TestRunFAQWithNoMatchingContext(t *testing.T) {
	retriever := &fakeRetriever{passages: []retrieval.RetrievedPassage{
		{ID: "1", Content: "Bananas are an excellent source of potassium and dietary fiber."},
	}}
	generator := &fakeGenerator{answer: "should never be used"}
	p := newTestPipeline(&fakeClassifier{intent: intent.FAQ}, retriever, generator)

	state, err := p.Run(context.Background(), "What is your return policy?")
	require.NoError(t, err)

	assert.Equal(t, retrieval.QualityNone, state.RetrievalQuality)
	assert.Equal(t, faqNoInformation, state.Answer)
	assert.Equal(t, ConfidenceNone, state.Confidence)
	assert.Equal(t, 0, generator.calls)
}

func TestRunUnknownIntentFallsThroughToOther(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{}
	classifier := &fakeClassifier{intent: intent.Other, err: errors.New(`unknown intent label "banana"`)}
	p := newTestPipeline(classifier, retriever, generator)

	state, err := p.Run(context.Background(), "banana banana banana")
	require.NoError(t, err)

	assert.Equal(t, intent.Other, state.Intent)
	assert.Equal(t, otherRedirect, state.Answer)
	assert.Equal(t, ConfidenceMedium, state.Confidence)
	assert.Contains(t, state.Error, "intent_error")
	assert.Equal(t, 0, retriever.calls)
}

func TestRunFAQGenerationFailureDegrades(t *testing.T) {
	retriever := &fakeRetriever{passages: returnPolicyPassages()}
	generator := &fakeGenerator{err: llm.ErrGenerationFailed}
	p := newTestPipeline(&fakeClassifier{intent: intent.FAQ}, retriever, generator)

	state, err := p.Run(context.Background(), "What is your return policy?")
	require.NoError(t, err)

	assert.Equal(t, faqFallback, state.Answer)
	assert.Contains(t, state.Answer, "having trouble answering")
	assert.Contains(t, state.Error, "answer_error")
	assert.Equal(t, ConfidenceLow, state.Confidence)
}

func TestRunRetrievalFailureContinues(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("vectorstore unavailable")}
	generator := &fakeGenerator{answer: "ignored"}
	p := newTestPipeline(&fakeClassifier{intent: intent.FAQ}, retriever, generator)

	state, err := p.Run(context.Background(), "What is your return policy?")
	require.NoError(t, err)

	assert.Equal(t, retrieval.QualityError, state.RetrievalQuality)
	assert.Contains(t, state.Error, "retrieval_error")
	assert.Equal(t, faqNoInformation, state.Answer)
	assert.Equal(t, ConfidenceNone, state.Confidence)
}

func TestRunNilRetriever(t *testing.T) {
	generator := &fakeGenerator{answer: "The X200 has a 12-hour battery and weighs 300 grams."}
	p := newTestPipeline(&fakeClassifier{intent: intent.ProductInquiry}, nil, generator)

	state, err := p.Run(context.Background(), "What are the specs of the X200?")
	require.NoError(t, err)

	assert.Equal(t, retrieval.QualityNoRetriever, state.RetrievalQuality)
	assert.Equal(t, ConfidenceMedium, state.Confidence)
	assert.NotEmpty(t, state.Answer)
}

func TestRunEmptyQuestion(t *testing.T) {
	p := newTestPipeline(&fakeClassifier{intent: intent.Other}, nil, &fakeGenerator{})

	_, err := p.Run(context.Background(), "   ")
	assert.Error(t, err)
}

func TestRunAlwaysProducesAnswer(t *testing.T) {
	// every intent terminates with a non-empty answer even when both
	// backends fail
	for _, label := range []intent.Intent{intent.Greeting, intent.Sales, intent.ProductInquiry, intent.FAQ, intent.Other} {
		t.Run(string(label), func(t *testing.T) {
			retriever := &fakeRetriever{err: errors.New("down")}
			generator := &fakeGenerator{err: errors.New("down")}
			p := newTestPipeline(&fakeClassifier{intent: label}, retriever, generator)

			state, err := p.Run(context.Background(), "anything at all")
			require.NoError(t, err)
			assert.NotEmpty(t, state.Answer)
		})
	}
}

func TestRunSalesFallback(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("down")}
	p := newTestPipeline(&fakeClassifier{intent: intent.Sales}, nil, generator)

	state, err := p.Run(context.Background(), "I want to buy a laptop")
	require.NoError(t, err)

	assert.Equal(t, salesFallback, state.Answer)
	assert.Equal(t, ConfidenceHigh, state.Confidence)
	assert.Contains(t, state.Error, "answer_error")
}

func TestRunValidationRejection(t *testing.T) {
	retriever := &fakeRetriever{passages: returnPolicyPassages()}
	// vague and formal, no specifics, short: scores well below acceptance
	generator := &fakeGenerator{answer: "Generally, based on the provided docs, it depends."}
	p := newTestPipeline(&fakeClassifier{intent: intent.FAQ}, retriever, generator)

	state, err := p.Run(context.Background(), "What is your return policy?")
	require.NoError(t, err)

	assert.True(t, state.ValidationFailed)
	assert.NotEmpty(t, state.ValidationReason)
	assert.Equal(t, faqLowConfidence, state.Answer)
	assert.NotEqual(t, generator.answer, state.Answer)
	assert.Empty(t, state.Error)

	require.NotNil(t, state.QualityMetrics)
	assert.True(t, state.QualityMetrics.IsVague)
	assert.True(t, state.QualityMetrics.IsFormal)
	assert.False(t, state.QualityMetrics.HasSpecifics)
}
