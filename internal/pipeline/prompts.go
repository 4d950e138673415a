package pipeline

import (
	"fmt"
	"strings"

	"shopping-assistant/internal/llm"
)

const faqSystemPrompt = `You are a helpful shopping assistant. Provide direct, natural answers using ONLY the information given in the context.

Rules:
- Use only facts explicitly stated in the context, never invent details.
- Give direct, conversational answers without formal language.
- Don't mention "documents" or "context" in your response.
- If information is missing, simply say you don't have that information.
- Be concise and specific, avoid vague statements.`

const greetingSystemPrompt = `You are a friendly e-commerce store representative. Welcome the customer warmly,
briefly mention you can help with products, recommendations, shipping, returns and deals,
and ask what they are looking for. Keep it short, natural and genuine.`

const salesSystemPrompt = `You are an enthusiastic sales representative for an e-commerce store. Help the
customer find the right products and guide them toward a purchase they'll love.
Focus on benefits and value, suggest complementary items when relevant, and
always end with a clear next step.`

const productInquirySystemPrompt = `You are a knowledgeable product specialist for an e-commerce store. Give
detailed, accurate product information, relate features to benefits, explain
technical terms plainly, and end with a friendly invitation to purchase or ask
more questions.`

func faqMessages(question, context string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: faqSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\nAvailable Information:\n%s\n\nProvide a helpful, direct answer using only the information above.", question, context)},
	}
}

func greetingMessages(question string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: greetingSystemPrompt},
		{Role: "user", Content: question},
	}
}

func salesMessages(question, context string) []llm.Message {
	if strings.TrimSpace(context) == "" {
		context = "We have great deals across the store right now."
	}
	return []llm.Message{
		{Role: "system", Content: salesSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Customer Query: %s\n\nAvailable Product Information:\n%s", question, context)},
	}
}

func productInquiryMessages(question, context string) []llm.Message {
	user := fmt.Sprintf("Product Question: %s", question)
	if strings.TrimSpace(context) != "" {
		user += fmt.Sprintf("\n\nAvailable Product Information:\n%s", context)
	}
	return []llm.Message{
		{Role: "system", Content: productInquirySystemPrompt},
		{Role: "user", Content: user},
	}
}
