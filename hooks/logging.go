package hooks

import (
	"context"
	"log"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// LoggingHooks provides built-in logging hooks for observability.
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger.
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with the default logger.
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Register attaches all logging hooks to the registry.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeTurn(h.BeforeTurn)
	r.OnAfterTurn(h.AfterTurn)
	r.OnBeforeSummary(h.BeforeSummary)
	r.OnAfterSummary(h.AfterSummary)
	r.OnExtractionDispatched(h.ExtractionDispatched)
}

// BeforeTurn logs the start of a turn.
func (h *LoggingHooks) BeforeTurn(ctx context.Context, conversationID, userText string) error {
	h.logger.Printf("[animachat] Turn starting for conversation %s (%d chars)", conversationID, len(userText))
	return nil
}

// AfterTurn logs the terminal state of a turn.
func (h *LoggingHooks) AfterTurn(ctx context.Context, info *TurnInfo) error {
	if info.Err != nil {
		h.logger.Printf("[animachat] Turn failed for conversation %s: %v", info.ConversationID, info.Err)
		return nil
	}
	h.logger.Printf("[animachat] Turn completed for conversation %s: message=%s ceiling=%t summarized=%t",
		info.ConversationID, info.MessageID, info.ContextCeilingReached, info.AutoSummaryTriggered)
	return nil
}

// BeforeSummary logs the start of a summarization.
func (h *LoggingHooks) BeforeSummary(ctx context.Context, conversationID string, boundary int) error {
	h.logger.Printf("[animachat] Summarizing conversation %s through boundary %d", conversationID, boundary)
	return nil
}

// AfterSummary logs the result of a summarization.
func (h *LoggingHooks) AfterSummary(ctx context.Context, record *storage.Summary, err error) error {
	if err != nil {
		h.logger.Printf("[animachat] Summarization failed: %v", err)
		return nil
	}
	h.logger.Printf("[animachat] Summary stored: conversation=%s boundary=%d keywords=%d",
		record.ConversationID, record.Boundary, len(record.Keywords))
	return nil
}

// ExtractionDispatched logs the context-extraction dispatch.
func (h *LoggingHooks) ExtractionDispatched(ctx context.Context, conversationID, messageID string) error {
	h.logger.Printf("[animachat] Context extraction dispatched for conversation %s message %s", conversationID, messageID)
	return nil
}
