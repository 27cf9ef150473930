package animachat

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrMissingConversationID indicates a turn was submitted without a
	// conversation ID.
	ErrMissingConversationID = errors.New("conversation ID is required")

	// ErrEmptyUserMessage indicates a turn was submitted with no text.
	ErrEmptyUserMessage = errors.New("user message text is required")

	// ErrProviderFailure indicates the model provider call failed.
	ErrProviderFailure = errors.New("model provider call failed")

	// ErrSummarizationInProgress indicates a manual summarization was
	// requested while one is already running for the conversation.
	ErrSummarizationInProgress = errors.New("summarization already in progress")
)

// TurnError provides structured error context for turn operations.
type TurnError struct {
	// Op is the operation that failed (e.g., "RunTurn", "Bill", "Reserve")
	Op string

	// ConversationID is the conversation ID if applicable
	ConversationID string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *TurnError) Error() string {
	msg := fmt.Sprintf("turn %s failed", e.Op)
	if e.ConversationID != "" {
		msg += fmt.Sprintf(" for conversation %s", e.ConversationID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *TurnError) Unwrap() error {
	return e.Err
}

// NewTurnError creates a new TurnError with the given operation and underlying error.
func NewTurnError(op string, err error) *TurnError {
	return &TurnError{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithConversation sets the conversation ID on the error and returns the error for chaining.
func (e *TurnError) WithConversation(conversationID string) *TurnError {
	e.ConversationID = conversationID
	return e
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *TurnError) WithContext(key string, value any) *TurnError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
