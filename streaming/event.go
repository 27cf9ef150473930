// Package streaming defines the event stream a turn emits to its caller and
// the accumulator that folds provider stream events into it.
package streaming

// EventType represents the type of turn stream event.
type EventType string

const (
	// EventTypeChunk carries an incremental piece of the response text.
	EventTypeChunk EventType = "chunk"

	// EventTypeError carries a user-visible error. The turn still finalizes.
	EventTypeError EventType = "error"

	// EventTypeCompleted is the terminal marker with turn metadata.
	EventTypeCompleted EventType = "completed"
)

// Event is one item in a turn's output stream: zero or more chunks, an
// optional error, then exactly one completion marker.
type Event struct {
	Type EventType

	// Text is the incremental response text for chunk events, or the
	// user-visible message for error events.
	Text string

	// Completion is set on the terminal event.
	Completion *Completion
}

// Completion is the terminal marker of a turn stream. The flags surface
// non-fatal conditions a UI may want to show as notices.
type Completion struct {
	// MessageID is the finalized AI message.
	MessageID string

	// Text is the full response text.
	Text string

	// ContextCeilingReached reports that older messages were dropped to fit
	// the token budget.
	ContextCeilingReached bool

	// AutoSummaryTriggered reports that this turn crossed a summarization
	// boundary and a compression ran (or was joined).
	AutoSummaryTriggered bool
}

// Chunk builds a chunk event.
func Chunk(text string) Event {
	return Event{Type: EventTypeChunk, Text: text}
}

// Error builds an error event.
func Error(text string) Event {
	return Event{Type: EventTypeError, Text: text}
}

// Completed builds the terminal event.
func Completed(c Completion) Event {
	return Event{Type: EventTypeCompleted, Completion: &c}
}
