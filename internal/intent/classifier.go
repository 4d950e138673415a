package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/llm"
)

const classificationSystemPrompt = `You are an intent classification system for an e-commerce shopping assistant.
Classify the user query into exactly one of: Greeting, Product_Inquiry, Sales, FAQ, Other.

Guidelines:
- Greeting: hello, hi, good morning, how are you, welcome messages
- Product_Inquiry: questions about specific products, features, specifications, comparisons
- Sales: purchase intent, "I want to buy", pricing, discounts, recommendations
- FAQ: general questions about policies (shipping, returns, warranty), store info, payment methods
- Other: complaints, technical issues, unrelated questions

Respond with ONLY a JSON object with a single field "result" containing the label, for example {"result": "FAQ"}. No explanations, no extra text.`

// Classifier maps questions to intents. The primary path asks the generation
// backend; any failure there falls back to keyword matching, so Classify
// always yields a usable intent.
type Classifier struct {
	generator llm.Generator
	logger    logger.Logger
}

func NewClassifier(generator llm.Generator, log logger.Logger) *Classifier {
	return &Classifier{
		generator: generator,
		logger:    log.WithFields(map[string]interface{}{"component": "intent"}),
	}
}

// Classify returns the intent for the question. The returned error is an
// annotation only: when non-nil the intent came from the keyword fallback and
// the caller may record the cause, but the intent is always valid.
func (c *Classifier) Classify(ctx context.Context, question string) (Intent, error) {
	raw, err := c.generator.Generate(ctx, []llm.Message{
		{Role: "system", Content: classificationSystemPrompt},
		{Role: "user", Content: question},
	})
	if err != nil {
		fallback := classifyByKeywords(question)
		c.logger.Warn("classification call failed, using keyword fallback", map[string]interface{}{
			"error":  err.Error(),
			"intent": string(fallback),
		})
		return fallback, fmt.Errorf("classification call failed: %w", err)
	}

	label, err := parseLabel(raw)
	if err != nil {
		fallback := classifyByKeywords(question)
		c.logger.Warn("classification parse failed, using keyword fallback", map[string]interface{}{
			"raw":    raw,
			"intent": string(fallback),
		})
		return fallback, err
	}

	intent, known := Parse(label)
	if !known {
		fallback := classifyByKeywords(question)
		c.logger.Warn("classifier returned unknown label, using keyword fallback", map[string]interface{}{
			"label":  label,
			"intent": string(fallback),
		})
		return fallback, fmt.Errorf("unknown intent label %q", label)
	}

	return intent, nil
}

// parseLabel extracts the "result" field from the model response, tolerating
// surrounding code fences.
func parseLabel(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return "", fmt.Errorf("parse classification response: %w", err)
	}
	if parsed.Result == "" {
		return "", fmt.Errorf("classification response missing result field")
	}
	return parsed.Result, nil
}
