package summary

import (
	"errors"
	"fmt"
)

// Sentinel errors for summarization operations.
var (
	// ErrInvalidConfig indicates invalid summarization configuration.
	ErrInvalidConfig = errors.New("invalid summarization configuration")

	// ErrEmptyRange indicates there are no messages eligible for summarization.
	ErrEmptyRange = errors.New("no messages to summarize")

	// ErrGenerationFailed indicates the summarization API call failed.
	ErrGenerationFailed = errors.New("summary generation failed")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty response from summarizer")
)

// SummaryError provides structured error context for summarization operations.
type SummaryError struct {
	// Op is the operation that failed (e.g., "Generate", "Upsert")
	Op string

	// ConversationID is the conversation ID if applicable
	ConversationID string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *SummaryError) Error() string {
	msg := fmt.Sprintf("summarization %s failed", e.Op)
	if e.ConversationID != "" {
		msg += fmt.Sprintf(" for conversation %s", e.ConversationID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *SummaryError) Unwrap() error {
	return e.Err
}

// NewSummaryError creates a new SummaryError with the given operation and underlying error.
func NewSummaryError(op string, err error) *SummaryError {
	return &SummaryError{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithConversation sets the conversation ID on the error and returns the error for chaining.
func (e *SummaryError) WithConversation(conversationID string) *SummaryError {
	e.ConversationID = conversationID
	return e
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *SummaryError) WithContext(key string, value any) *SummaryError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WrapError wraps an error with operation context. If err is nil, returns nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewSummaryError(op, err)
}
