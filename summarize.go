package animachat

import (
	"context"
	"fmt"

	"github.com/pipe1800/anima-chat-sub000/storage"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

// Summarize generates a summary of the conversation on demand. Unlike the
// automatic path, a manual summary is a new record every time and does not
// move the automatic boundary.
//
// Returns ErrSummarizationInProgress when an automatic summarization already
// holds the conversation's lock.
func (e *Engine[TTx]) Summarize(ctx context.Context, conversationID string) (*storage.Summary, error) {
	if conversationID == "" {
		return nil, NewTurnError("Summarize", ErrMissingConversationID)
	}
	if e.locks.Held(conversationID) {
		return nil, NewTurnError("Summarize", ErrSummarizationInProgress).WithConversation(conversationID)
	}

	conversation, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, NewTurnError("Summarize", err).WithConversation(conversationID)
	}
	character, err := e.store.GetCharacter(ctx, conversation.CharacterID)
	if err != nil {
		return nil, NewTurnError("Summarize", err).WithConversation(conversationID)
	}
	history, err := e.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, NewTurnError("Summarize", err).WithConversation(conversationID)
	}

	work := func() (*summary.Result, error) {
		return e.generator.Generate(ctx, history, character.Name)
	}

	// Manual requests do not benefit from the grace-window dedupe, so the
	// lock is released as soon as the work settles.
	handle, _ := e.locks.AcquireOrJoin(conversationID, work)
	result, err := handle.Wait(ctx)
	e.locks.Release(conversationID)
	if err != nil {
		return nil, NewTurnError("Summarize", err).WithConversation(conversationID)
	}

	record, err := e.store.CreateSummary(ctx, storage.SummaryParams{
		ConversationID: conversationID,
		CharacterID:    conversation.CharacterID,
		UserID:         conversation.UserID,
		Title:          result.Title,
		Body:           result.Prose,
		Keywords:       result.Keywords,
		Boundary:       summary.MaxAISequence(history),
	})
	if err != nil {
		return nil, NewTurnError("Summarize", err).WithConversation(conversationID)
	}
	return record, nil
}

// SummaryStats describes where a conversation stands relative to the
// automatic summarization cycle.
type SummaryStats struct {
	ConversationID string `json:"conversation_id"`

	// TotalMessages counts every stored message, placeholders included.
	TotalMessages int `json:"total_messages"`

	// AISequence is the sequence number of the latest countable AI message.
	AISequence int `json:"ai_sequence"`

	// Boundary is the AI sequence the automatic summary currently covers.
	Boundary int `json:"boundary"`

	// NextTriggerAt is the AI sequence at which the next automatic
	// summarization fires.
	NextTriggerAt int `json:"next_trigger_at"`

	// SummaryCount counts all summaries, manual and automatic.
	SummaryCount int `json:"summary_count"`

	// EstimatedWindowTokens is the estimated token cost of the recency
	// window the next turn would select.
	EstimatedWindowTokens int `json:"estimated_window_tokens"`

	// SummarizationActive reports whether a summarization is in flight.
	SummarizationActive bool `json:"summarization_active"`
}

// SummaryStats reports the conversation's summarization progress.
func (e *Engine[TTx]) SummaryStats(ctx context.Context, conversationID string) (*SummaryStats, error) {
	if conversationID == "" {
		return nil, NewTurnError("SummaryStats", ErrMissingConversationID)
	}

	history, err := e.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	boundary, err := e.store.SummaryBoundary(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading summary boundary: %w", err)
	}
	summaries, err := e.store.ListSummaries(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}

	return &SummaryStats{
		ConversationID:        conversationID,
		TotalMessages:         len(history),
		AISequence:            summary.MaxAISequence(history),
		Boundary:              boundary,
		NextTriggerAt:         boundary + e.trigger.Interval(),
		SummaryCount:          len(summaries),
		EstimatedWindowTokens: selectWindow(history, e.config.tokenBudget).Tokens,
		SummarizationActive:   e.locks.Held(conversationID),
	}, nil
}
