package animachat

import (
	"context"

	"github.com/pipe1800/anima-chat-sub000/driver"
)

// Extractor derives the conversation's situational context (mood, location,
// and so on) from recent messages. It runs as a fire-and-forget follow-up
// after a turn finalizes; the engine never awaits its result.
type Extractor interface {
	ExtractContext(ctx context.Context, conversationID, messageID string) error
}

// dispatchExtraction kicks off context extraction in the background, exactly
// once per finalized turn. The background context is stripped of the turn's
// transaction and its cancellation so extraction survives both.
func (e *Engine[TTx]) dispatchExtraction(ctx context.Context, conversationID, messageID string) {
	bgCtx := driver.StripExecutor(context.WithoutCancel(ctx))

	if err := e.hooks.TriggerExtractionDispatched(bgCtx, conversationID, messageID); err != nil {
		e.logger.Warn("extraction-dispatched hook failed", "error", err)
	}

	if e.extractor == nil {
		return
	}

	go func() {
		if err := e.extractor.ExtractContext(bgCtx, conversationID, messageID); err != nil {
			e.logger.Error("context extraction failed",
				"conversation_id", conversationID,
				"message_id", messageID,
				"error", err,
			)
		}
	}()
}
