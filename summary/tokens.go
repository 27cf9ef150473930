package summary

import (
	"math"
	"regexp"
	"strings"
)

// markupPattern matches HTML/XML-ish tags, used as a density signal.
var markupPattern = regexp.MustCompile(`<[^<>]+>`)

// EstimateTokens approximates the token cost of text without a tokenizer.
//
// It takes the larger of a character heuristic (len/4) and a word heuristic
// (words × 1.3), then biases upward for structural density: ×1.2 when the
// text contains braces or brackets, ×1.15 when it contains code fences or
// markup. The estimate is intentionally conservative; callers need
// monotonicity and rough proportionality, not exactness.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	charEstimate := float64(len(text)) / 4
	wordEstimate := float64(len(strings.Fields(text))) * 1.3

	estimate := math.Max(charEstimate, wordEstimate)

	if strings.ContainsAny(text, "{}[]") {
		estimate *= 1.2
	}
	if strings.Contains(text, "```") || markupPattern.MatchString(text) {
		estimate *= 1.15
	}

	return int(math.Ceil(estimate))
}
