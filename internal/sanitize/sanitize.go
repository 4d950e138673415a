// Package sanitize cleans user input before it enters the answer pipeline.
//
// It guards against prompt injection, PII leakage, control characters,
// oversized inputs and pathological repetition. Sanitization never fails:
// every input produces a Result.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMaxLength caps input size; longer inputs are truncated with a warning.
	DefaultMaxLength = 10000

	// maxRepetition is the longest run of a repeated character or substring
	// that survives sanitization.
	maxRepetition = 10
)

// Result is the outcome of sanitizing one input.
type Result struct {
	SanitizedText   string   `json:"sanitized_text"`
	IsSafe          bool     `json:"is_safe"`
	Warnings        []string `json:"warnings"`
	OriginalLength  int      `json:"original_length"`
	SanitizedLength int      `json:"sanitized_length"`
}

// Patterns that might indicate prompt injection.
var injectionPatterns = []*regexp.Regexp{
	// Direct instruction patterns
	regexp.MustCompile(`(?i)\b(ignore|forget|disregard)\s+(all\s+)?(previous|prior|earlier|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)\b(act\s+as|pretend\s+to\s+be|roleplay\s+as)\s+`),
	regexp.MustCompile(`(?i)\b(system\s*:|assistant\s*:|user\s*:|human\s*:)`),
	regexp.MustCompile(`(?i)\b(end\s+of\s+prompt|stop\s+assistant)`),
	// Injection keywords
	regexp.MustCompile(`(?i)\b(jailbreak|hack|bypass|override|escalate)\b`),
	regexp.MustCompile(`(?i)\b(sudo|admin|root|privilege)\b`),
	// Common prompt manipulation
	regexp.MustCompile(`(?i)(\[|\()?system\s*(\]|\))?:?\s*(you\s+are|act\s+as)`),
	regexp.MustCompile(`(?i)new\s+(instructions?|rules?|guidelines?)`),
	regexp.MustCompile(`(?i)developer\s+mode`),
	// Encoding attempts
	regexp.MustCompile(`(?i)\b(base64|hex|unicode|ascii)\b`),
}

// PII patterns and their redaction categories.
var piiPatterns = []struct {
	re       *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "EMAIL"},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "PHONE"},
	{regexp.MustCompile(`\b\(\d{3}\)\s*\d{3}[-.]?\d{4}\b`), "PHONE"},
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "CREDIT_CARD"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "SSN"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "IP_ADDRESS"},
}

// Encoding-bypass indicators.
var encodingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\\x[0-9a-fA-F]{2}`),  // Hex encoding
	regexp.MustCompile(`\\u[0-9a-fA-F]{4}`),  // Unicode encoding
	regexp.MustCompile(`\\[0-7]{3}`),         // Octal encoding
	regexp.MustCompile(`%[0-9a-fA-F]{2}`),    // URL encoding
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Sanitizer cleans user queries before they reach the language model.
type Sanitizer struct {
	maxLength int
}

// New creates a Sanitizer. A non-positive maxLength falls back to the default.
func New(maxLength int) *Sanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Sanitizer{maxLength: maxLength}
}

// Sanitize cleans text and reports whether it is safe to process.
//
// In strict mode any warning marks the input unsafe; otherwise only
// injection/bypass warnings do. Sanitize is pure and never returns an error.
func (s *Sanitizer) Sanitize(text string, strictMode bool) Result {
	if text == "" {
		return Result{SanitizedText: "", IsSafe: true, Warnings: []string{}}
	}

	originalLength := len(text)
	warnings := []string{}

	// Step 1: basic cleaning
	text = removeControlChars(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	// Step 2: length check
	if len(text) > s.maxLength {
		warnings = append(warnings, fmt.Sprintf("Input truncated from %d to %d characters", len(text), s.maxLength))
		text = text[:s.maxLength]
	}

	// Step 3: repetition limits
	collapsed, repeated := limitRepetition(text)
	if repeated {
		warnings = append(warnings, "Potential prompt injection detected: excessive pattern repetition")
	}
	text = collapsed

	// Step 4: PII detection and redaction
	text, piiWarnings := redactPII(text)
	warnings = append(warnings, piiWarnings...)

	// Step 5: prompt injection detection
	for _, re := range injectionPatterns {
		if re.MatchString(text) {
			pattern := re.String()
			if len(pattern) > 50 {
				pattern = pattern[:50] + "..."
			}
			warnings = append(warnings, fmt.Sprintf("Potential prompt injection detected: pattern '%s'", pattern))
		}
	}

	// Step 6: encoding bypass detection
	for _, re := range encodingPatterns {
		if re.MatchString(text) {
			warnings = append(warnings, fmt.Sprintf("Potential encoding bypass detected: %s", re.String()))
		}
	}

	hasCriticalIssues := false
	for _, w := range warnings {
		lw := strings.ToLower(w)
		if strings.Contains(lw, "injection") || strings.Contains(lw, "bypass") {
			hasCriticalIssues = true
			break
		}
	}

	isSafe := !hasCriticalIssues
	if strictMode && len(warnings) > 0 {
		isSafe = false
	}

	return Result{
		SanitizedText:   text,
		IsSafe:          isSafe,
		Warnings:        warnings,
		OriginalLength:  originalLength,
		SanitizedLength: len(text),
	}
}

// removeControlChars strips C0 control characters except tab/newline/CR,
// which the whitespace pass collapses anyway.
func removeControlChars(text string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, text)
}

// redactPII replaces matches per category with a redaction token and emits
// one warning per category matched.
func redactPII(text string) (string, []string) {
	var warnings []string
	seen := map[string]bool{}

	for _, p := range piiPatterns {
		if !p.re.MatchString(text) {
			continue
		}
		if !seen[p.category] {
			seen[p.category] = true
			warnings = append(warnings, fmt.Sprintf("PII detected: %s", p.category))
		}
		text = p.re.ReplaceAllString(text, "[REDACTED_"+p.category+"]")
	}

	return text, warnings
}

// limitRepetition collapses any substring of length 1..10 repeated more than
// maxRepetition consecutive times down to maxRepetition occurrences. Regexp
// backreferences are unavailable here, so the scan is manual. Returns the
// collapsed text and whether anything was collapsed.
func limitRepetition(text string) (string, bool) {
	collapsed := false

	for subLen := 1; subLen <= 10; subLen++ {
		var b strings.Builder
		i := 0
		for i < len(text) {
			if i+subLen > len(text) {
				b.WriteString(text[i:])
				break
			}
			unit := text[i : i+subLen]
			count := 1
			for i+(count+1)*subLen <= len(text) && text[i+count*subLen:i+(count+1)*subLen] == unit {
				count++
			}
			if count > maxRepetition {
				collapsed = true
				b.WriteString(strings.Repeat(unit, maxRepetition))
				i += count * subLen
				continue
			}
			b.WriteString(text[i : i+subLen*count])
			i += subLen * count
		}
		text = b.String()
	}

	return text, collapsed
}
