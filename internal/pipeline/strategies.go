package pipeline

import (
	"context"
	"strings"

	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/retrieval"
)

// Canned degradation answers. Every strategy falls back to its own text so a
// backend outage still yields a usable conversational reply.
const (
	greetingFallback = "Hello! Welcome to our store. How can I help you find what you're looking for today?"
	salesFallback    = "I'd love to help you find a great deal! Tell me a bit more about what you're looking for and I'll point you to our best offers."
	productFallback  = "I'm having trouble pulling up the product details right now. Could you tell me a bit more about the product you're interested in?"
	faqFallback      = "I'm having trouble answering that right now. Please try again in a moment."
	faqNoInformation = "I don't have enough information to answer that question."
	faqLowConfidence = "I found some information, but I can't confidently answer your question. Could you try rephrasing it?"
	otherRedirect    = "I can help with questions about our products, recommendations, orders, shipping, returns and store policies. What would you like to know?"
)

func (p *Pipeline) greet(ctx context.Context, st *State) Result {
	answer, err := p.generator.Generate(ctx, greetingMessages(st.Question))
	if err != nil || strings.TrimSpace(answer) == "" {
		return Degraded("answer_error", errMessage(err), func(s *State) {
			s.Answer = greetingFallback
			s.Confidence = ConfidenceHigh
		})
	}
	return Ok(func(s *State) {
		s.Answer = answer
		s.Confidence = ConfidenceHigh
	})
}

func (p *Pipeline) sell(ctx context.Context, st *State) Result {
	answer, err := p.generator.Generate(ctx, salesMessages(st.Question, strings.Join(st.Context, "\n\n")))
	if err != nil || strings.TrimSpace(answer) == "" {
		return Degraded("answer_error", errMessage(err), func(s *State) {
			s.Answer = salesFallback
			s.Confidence = ConfidenceHigh
		})
	}
	return Ok(func(s *State) {
		s.Answer = answer
		s.Confidence = ConfidenceHigh
	})
}

func (p *Pipeline) inquire(ctx context.Context, st *State) Result {
	confidence := ConfidenceMedium
	if len(st.Context) > 0 {
		confidence = ConfidenceHigh
	}

	answer, err := p.generator.Generate(ctx, productInquiryMessages(st.Question, strings.Join(st.Context, "\n\n")))
	if err != nil || strings.TrimSpace(answer) == "" {
		return Degraded("answer_error", errMessage(err), func(s *State) {
			s.Answer = productFallback
			s.Confidence = ConfidenceMedium
		})
	}
	return Ok(func(s *State) {
		s.Answer = answer
		s.Confidence = confidence
	})
}

func (p *Pipeline) answerFAQ(ctx context.Context, st *State) Result {
	joined := strings.Join(st.Context, "\n\n")
	if len(st.Context) == 0 || joined == retrieval.NoRelevantInformation {
		return Ok(func(s *State) {
			s.Answer = faqNoInformation
			s.Confidence = ConfidenceNone
		})
	}

	answer, err := p.generator.Generate(ctx, faqMessages(st.Question, joined))
	if err != nil {
		return Degraded("answer_error", errMessage(err), func(s *State) {
			s.Answer = faqFallback
			s.Confidence = ConfidenceLow
		})
	}

	return p.validateFAQ(answer, joined, st.RetrievalQuality)
}

// validateFAQ accepts or substitutes a generated FAQ answer. Rejection is a
// policy decision, not an error: the state records the reason but no error
// tag is set.
func (p *Pipeline) validateFAQ(answer, context string, quality retrieval.Quality) Result {
	v := ValidateAnswer(answer, context)
	confidence := v.Confidence(quality)

	if !v.Valid {
		metrics.ValidationRejections.Inc()
		return Ok(func(s *State) {
			s.Answer = faqLowConfidence
			s.Confidence = capConfidence(confidence, ConfidenceLow)
			s.QualityMetrics = v.Metrics()
			s.ValidationFailed = true
			s.ValidationReason = v.Reason
		})
	}

	return Ok(func(s *State) {
		s.Answer = answer
		s.Confidence = confidence
		s.QualityMetrics = v.Metrics()
	})
}

func (p *Pipeline) answerOther(_ context.Context, _ *State) Result {
	return Ok(func(s *State) {
		s.Answer = otherRedirect
		s.Confidence = ConfidenceMedium
	})
}

func errMessage(err error) string {
	if err == nil {
		return "empty generation result"
	}
	return err.Error()
}
