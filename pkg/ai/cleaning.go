package ai

import (
	"regexp"
	"strings"
)

// Reasoning models wrap their chain of thought in think/redacted_reasoning
// spans; strip those before looking for the document.
var reasoningRe = regexp.MustCompile(`(?is)<(?:think|redacted_reasoning)\b[^>]*>.*?</(?:think|redacted_reasoning)>`)

// htmlBlockRe captures the first fenced html code block.
var htmlBlockRe = regexp.MustCompile("(?is)`{3}\\s*html\\s*(.*?)`{3}")

// CleanGenerated extracts the HTML payload from a provider's raw text
// output: reasoning spans are removed first, then the first fenced html
// block wins, falling back to the full cleaned text.
func CleanGenerated(raw string) string {
	cleaned := reasoningRe.ReplaceAllString(raw, "")
	if m := htmlBlockRe.FindStringSubmatch(cleaned); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(cleaned)
}
