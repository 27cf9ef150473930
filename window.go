package animachat

import (
	"strings"

	"github.com/pipe1800/anima-chat-sub000/storage"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

// MaxWindowPairs caps how many AI/user message pairs the recency window may
// hold regardless of the token budget.
const MaxWindowPairs = 5

// window is the selected slice of recent history that fits the budget.
type window struct {
	// Messages is the selection in chronological order.
	Messages []*storage.Message

	// Dropped counts real messages that did not fit.
	Dropped int

	// Tokens is the total estimated token cost of the selection.
	Tokens int
}

// ceilingReached reports whether older messages were dropped to fit.
func (w window) ceilingReached() bool {
	return w.Dropped > 0
}

// selectWindow walks history newest to oldest, pulling in AI messages with
// their preceding user message as pairs, until either the pair cap or the
// token budget would be exceeded. Each candidate is checked against the
// remaining budget before inclusion, so the result never exceeds the budget.
// The selection is returned in chronological order.
func selectWindow(history []*storage.Message, budget int) window {
	included := make(map[int]bool)
	remaining := budget
	pairs := 0
	total := 0

	for i := len(history) - 1; i >= 0; i-- {
		if included[i] {
			continue
		}
		msg := history[i]
		if skipInWindow(msg) {
			continue
		}

		if msg.Role == storage.RoleAI {
			if pairs >= MaxWindowPairs {
				break
			}

			userIdx := precedingUserIndex(history, included, i)
			cost := summary.EstimateTokens(msg.Text)
			if userIdx >= 0 {
				cost += summary.EstimateTokens(history[userIdx].Text)
			}
			if cost > remaining {
				break
			}

			included[i] = true
			if userIdx >= 0 {
				included[userIdx] = true
			}
			remaining -= cost
			total += cost
			pairs++
			continue
		}

		// A user message with no AI response yet, typically the current turn.
		cost := summary.EstimateTokens(msg.Text)
		if cost > remaining {
			break
		}
		included[i] = true
		remaining -= cost
		total += cost
	}

	w := window{Tokens: total}
	for i, msg := range history {
		if included[i] {
			w.Messages = append(w.Messages, msg)
		} else if !skipInWindow(msg) {
			w.Dropped++
		}
	}
	return w
}

// precedingUserIndex finds the user message belonging to the AI message at
// aiIdx: the nearest earlier user message not yet claimed by a later pair.
func precedingUserIndex(history []*storage.Message, included map[int]bool, aiIdx int) int {
	for j := aiIdx - 1; j >= 0; j-- {
		if history[j].Role != storage.RoleUser || skipInWindow(history[j]) {
			continue
		}
		if included[j] {
			return -1
		}
		return j
	}
	return -1
}

// skipInWindow reports whether a message never enters the window.
func skipInWindow(msg *storage.Message) bool {
	return msg.IsPlaceholder || strings.TrimSpace(msg.Text) == ""
}
