package summary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ParseOutcome tags which rung of the parse ladder produced a Result.
type ParseOutcome int

const (
	// ParseOutcomeParsed means the model returned well-formed JSON.
	ParseOutcomeParsed ParseOutcome = iota

	// ParseOutcomePartial means structural parsing failed but the prose was
	// recovered, with keywords synthesized from the conversation.
	ParseOutcomePartial

	// ParseOutcomeFallback means the raw model output was used as prose,
	// with keywords synthesized from the conversation.
	ParseOutcomeFallback
)

// String returns the outcome name.
func (o ParseOutcome) String() string {
	switch o {
	case ParseOutcomeParsed:
		return "parsed"
	case ParseOutcomePartial:
		return "partial"
	case ParseOutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is a normalized summary regardless of how the model's output had to
// be recovered.
type Result struct {
	Title    string
	Prose    string
	Keywords []string
	Outcome  ParseOutcome
}

// summaryPayload is the JSON shape the prompt demands.
type summaryPayload struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// summaryFieldPattern recovers the prose from malformed JSON that still
// contains a quoted "summary" field.
var summaryFieldPattern = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ParseModelOutput normalizes a summarization response through a three-rung
// ladder: well-formed JSON, regex recovery of the summary field, then the raw
// output as prose with keywords extracted from the conversation itself.
//
// Malformed but non-empty output never fails; only a blank response is an
// error. The character's name is always among the returned keywords.
func ParseModelOutput(raw, conversationText, characterName string) (*Result, error) {
	raw = strings.TrimSpace(stripCodeFences(raw))
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	if result, ok := parseJSON(raw, conversationText, characterName); ok {
		return result, nil
	}

	if prose, ok := recoverSummaryField(raw); ok {
		return &Result{
			Title:    fallbackTitle(characterName),
			Prose:    prose,
			Keywords: ExtractKeywords(conversationText, characterName, DefaultMaxKeywords),
			Outcome:  ParseOutcomePartial,
		}, nil
	}

	return &Result{
		Title:    fallbackTitle(characterName),
		Prose:    raw,
		Keywords: ExtractKeywords(conversationText, characterName, DefaultMaxKeywords),
		Outcome:  ParseOutcomeFallback,
	}, nil
}

// parseJSON attempts the first rung: a well-formed payload with non-empty
// prose. Missing keywords demote the result to partial with synthesized
// keywords rather than failing.
func parseJSON(raw, conversationText, characterName string) (*Result, bool) {
	var payload summaryPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return nil, false
	}

	result := &Result{
		Title:    strings.TrimSpace(payload.Title),
		Prose:    strings.TrimSpace(payload.Summary),
		Keywords: normalizeKeywords(payload.Keywords, characterName),
		Outcome:  ParseOutcomeParsed,
	}
	if result.Title == "" {
		result.Title = fallbackTitle(characterName)
	}
	if len(result.Keywords) == 0 {
		result.Keywords = ExtractKeywords(conversationText, characterName, DefaultMaxKeywords)
		result.Outcome = ParseOutcomePartial
	}
	return result, true
}

// recoverSummaryField is the second rung: pull the prose out of a "summary"
// field that JSON parsing could not handle (truncated object, trailing
// commentary, etc).
func recoverSummaryField(raw string) (string, bool) {
	m := summaryFieldPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}

	prose, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		prose = m[1]
	}
	prose = strings.TrimSpace(prose)
	return prose, prose != ""
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, if the whole output is wrapped in one.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// fallbackTitle produces a title when the model did not supply one.
func fallbackTitle(characterName string) string {
	if characterName == "" {
		return "Conversation summary"
	}
	return fmt.Sprintf("Conversation with %s", characterName)
}

// normalizeKeywords lower-cases, trims, and deduplicates keywords, always
// including the character's name.
func normalizeKeywords(keywords []string, characterName string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		out = append(out, kw)
	}

	for _, kw := range keywords {
		add(kw)
	}
	if len(out) > 0 && characterName != "" {
		add(characterName)
	}
	return out
}

// stopwords excluded from fallback keyword extraction.
var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "their": true,
	"there": true, "these": true, "thing": true, "things": true,
	"think": true, "those": true, "through": true, "because": true,
	"been": true, "before": true, "being": true, "between": true,
	"both": true, "came": true, "come": true, "could": true,
	"does": true, "doing": true, "down": true, "each": true,
	"even": true, "every": true, "from": true, "going": true,
	"have": true, "having": true, "here": true, "into": true,
	"just": true, "know": true, "like": true, "little": true,
	"looked": true, "looking": true, "made": true, "make": true,
	"more": true, "most": true, "much": true, "never": true,
	"only": true, "other": true, "over": true, "really": true,
	"right": true, "said": true, "says": true, "should": true,
	"some": true, "something": true, "still": true, "such": true,
	"take": true, "than": true, "that": true, "them": true,
	"then": true, "they": true, "this": true, "time": true,
	"very": true, "want": true, "well": true, "went": true,
	"were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true,
	"would": true, "your": true, "yours": true,
}

// ExtractKeywords deterministically pulls keywords from conversation text:
// tokens at least four letters long, stopwords excluded, ranked by frequency
// with an alphabetical tiebreak. The character's name always leads the list.
func ExtractKeywords(text, characterName string, max int) []string {
	if max <= 0 {
		max = DefaultMaxKeywords
	}

	counts := make(map[string]int)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tok := range tokens {
		if len(tok) < 4 || stopwords[tok] {
			continue
		}
		counts[tok]++
	}

	ranked := make([]string, 0, len(counts))
	for tok := range counts {
		ranked = append(ranked, tok)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	var out []string
	seen := make(map[string]bool)
	if characterName != "" {
		name := strings.ToLower(strings.TrimSpace(characterName))
		out = append(out, name)
		seen[name] = true
	}
	for _, tok := range ranked {
		if len(out) >= max {
			break
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
