// Package prompt assembles the system prompt for a chat turn: persona and
// mode framing plus conditionally surfaced addon context (situational state,
// time awareness, world info, memories, the latest durable summary).
//
// World-info and memory corpora grow without bound over a user's lifetime, so
// both pass through a keyword relevance filter capped at a fixed number of
// entries before they ever reach the prompt.
package prompt

import (
	"sort"
	"strings"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// MaxFilteredEntries caps how many world-info entries or memories are
// injected into one prompt.
const MaxFilteredEntries = 3

// FilterWorldInfo returns the entries whose keywords case-insensitively
// substring-match the combined recent conversation text, capped at
// MaxFilteredEntries. The result is always a subset of the input.
func FilterWorldInfo(entries []*storage.WorldInfoEntry, recentText string) []*storage.WorldInfoEntry {
	haystack := strings.ToLower(recentText)

	var matched []*storage.WorldInfoEntry
	for _, entry := range entries {
		if len(matched) >= MaxFilteredEntries {
			break
		}
		if keywordsMatch(entry.Keywords, haystack) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// FilterMemories returns the memories whose keywords case-insensitively
// substring-match the combined recent conversation text, sorted newest-first
// and capped at MaxFilteredEntries.
func FilterMemories(memories []*storage.Memory, recentText string) []*storage.Memory {
	haystack := strings.ToLower(recentText)

	var matched []*storage.Memory
	for _, memory := range memories {
		if keywordsMatch(memory.Keywords, haystack) {
			matched = append(matched, memory)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) > MaxFilteredEntries {
		matched = matched[:MaxFilteredEntries]
	}
	return matched
}

// keywordsMatch reports whether any keyword appears in the lower-cased
// haystack.
func keywordsMatch(keywords []string, haystack string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
