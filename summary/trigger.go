package summary

import (
	"strings"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// LockChecker reports whether a summarization is already in flight for a
// conversation. Satisfied by *LockManager.
type LockChecker interface {
	Held(conversationID string) bool
}

// Decision is the result of a trigger evaluation.
type Decision struct {
	// Triggered reports whether this turn must compress history.
	Triggered bool

	// Boundary is the AI-sequence number the new summary will cover through.
	// Only meaningful when Triggered is true.
	Boundary int

	// Range is the exact set of messages to compress: the interval's AI
	// messages plus the user messages interleaved between the first and last
	// of them. Chronological order.
	Range []*storage.Message
}

// TriggerEvaluator decides whether an automatic summary is due.
//
// AI-sequence numbers are recomputed on every evaluation by scanning history,
// never read from storage, so the decision only depends on persisted messages
// and the persisted boundary.
type TriggerEvaluator struct {
	interval int
	locks    LockChecker
}

// NewTriggerEvaluator creates a trigger evaluator. A nil locks checker
// disables the in-flight short-circuit.
func NewTriggerEvaluator(interval int, locks LockChecker) *TriggerEvaluator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TriggerEvaluator{interval: interval, locks: locks}
}

// Evaluate scans history and decides whether to trigger compression.
//
// The trigger fires only when the maximum AI-sequence number equals exactly
// lastBoundary + interval. The equality (rather than >=) guarantees the
// trigger fires once per interval crossing no matter how many times the
// evaluator runs at that count. If a summarization is already in flight for
// the conversation, the evaluator reports no trigger; the boundary condition
// is checked against persisted state, so the crossing is re-detected on a
// later turn rather than lost.
func (e *TriggerEvaluator) Evaluate(conversationID string, history []*storage.Message, lastBoundary int) Decision {
	if e.locks != nil && e.locks.Held(conversationID) {
		return Decision{}
	}

	seqs := assignAISequence(history)

	maxSeq := 0
	for _, seq := range seqs {
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	if maxSeq != lastBoundary+e.interval {
		return Decision{}
	}

	return Decision{
		Triggered: true,
		Boundary:  maxSeq,
		Range:     extractRange(history, seqs, lastBoundary+1, maxSeq),
	}
}

// Interval returns the configured trigger interval.
func (e *TriggerEvaluator) Interval() int {
	return e.interval
}

// MaxAISequence returns the highest AI-sequence number in history, 0 when no
// AI message counts.
func MaxAISequence(history []*storage.Message) int {
	max := 0
	for _, seq := range assignAISequence(history) {
		if seq > max {
			max = seq
		}
	}
	return max
}

// assignAISequence returns a parallel slice mapping each history index to its
// 1-based AI-sequence number, or 0 for messages that carry none (user
// messages, placeholders, and empty sentinel AI messages).
func assignAISequence(history []*storage.Message) []int {
	seqs := make([]int, len(history))
	seq := 0
	for i, msg := range history {
		if !countsForSequence(msg) {
			continue
		}
		seq++
		seqs[i] = seq
	}
	return seqs
}

// countsForSequence reports whether a message advances the AI sequence.
func countsForSequence(msg *storage.Message) bool {
	if msg.Role != storage.RoleAI {
		return false
	}
	if msg.IsPlaceholder {
		return false
	}
	return strings.TrimSpace(msg.Text) != ""
}

// extractRange collects the AI messages with sequence numbers in
// [firstSeq, lastSeq] plus the user messages interleaved between the first
// and last of them, preserving chronological order.
func extractRange(history []*storage.Message, seqs []int, firstSeq, lastSeq int) []*storage.Message {
	firstIdx, lastIdx := -1, -1
	for i, seq := range seqs {
		if seq >= firstSeq && seq <= lastSeq {
			if firstIdx == -1 {
				firstIdx = i
			}
			lastIdx = i
		}
	}
	if firstIdx == -1 {
		return nil
	}

	var rng []*storage.Message
	for i := firstIdx; i <= lastIdx; i++ {
		msg := history[i]
		switch {
		case seqs[i] >= firstSeq && seqs[i] <= lastSeq:
			rng = append(rng, msg)
		case msg.Role == storage.RoleUser:
			rng = append(rng, msg)
		}
	}
	return rng
}
