// Package intent classifies user questions into the closed label set the
// answer pipeline routes on.
package intent

import "strings"

// Intent is one of the closed set of routing labels.
type Intent string

const (
	Greeting       Intent = "Greeting"
	Sales          Intent = "Sales"
	ProductInquiry Intent = "Product_Inquiry"
	FAQ            Intent = "FAQ"
	Other          Intent = "Other"
)

// Parse maps a label to an Intent, case-insensitive. Unknown labels collapse
// to Other and report false.
func Parse(label string) (Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "greeting":
		return Greeting, true
	case "sales":
		return Sales, true
	case "product_inquiry", "product inquiry":
		return ProductInquiry, true
	case "faq":
		return FAQ, true
	case "other":
		return Other, true
	default:
		return Other, false
	}
}

// NeedsRetrieval reports whether the pipeline should run retrieval before
// answering this intent.
func (i Intent) NeedsRetrieval() bool {
	return i == FAQ || i == ProductInquiry
}

var (
	greetingWords = []string{"hello", "hi", "hey", "howdy", "greetings", "morning", "afternoon", "evening", "welcome"}
	salesWords    = []string{"buy", "buying", "purchase", "order", "price", "pricing", "cost", "discount", "deal", "deals", "recommend", "recommendation"}
	productWords  = []string{"feature", "features", "spec", "specs", "specification", "specifications", "dimensions", "weight", "model", "variant", "compare", "comparison", "product"}
	policyWords   = []string{"policy", "policies", "return", "returns", "refund", "refunds", "shipping", "delivery", "warranty", "payment", "store", "hours", "support", "help"}
)

// classifyByKeywords is the deterministic fallback. Categories are checked in
// priority order and the first hit wins.
func classifyByKeywords(question string) Intent {
	words := tokenize(question)

	for _, w := range greetingWords {
		if words[w] {
			return Greeting
		}
	}
	for _, w := range salesWords {
		if words[w] {
			return Sales
		}
	}
	for _, w := range productWords {
		if words[w] {
			return ProductInquiry
		}
	}
	for _, w := range policyWords {
		if words[w] {
			return FAQ
		}
	}
	return Other
}

// tokenize lower-cases and splits on non-letter boundaries so punctuation
// does not mask keywords ("Hello!" still matches "hello").
func tokenize(text string) map[string]bool {
	set := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			set[b.String()] = true
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}
