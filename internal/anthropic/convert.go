// Package anthropic holds provider-specific helpers: converting chat history
// to API message parameters and classifying API errors.
package anthropic

import (
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

// ConvertMessages converts chat history to Anthropic message parameters.
// Placeholders and empty messages are dropped; the chat roles map to the
// API's user/assistant roles.
func ConvertMessages(messages []*storage.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		if msg.IsPlaceholder || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == storage.RoleAI {
			role = anthropic.MessageParamRoleAssistant
		}

		params = append(params, anthropic.MessageParam{
			Role: role,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(msg.Text),
			},
		})
	}

	return params
}

// IsRetryableError checks if an API error should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return false
	}

	// Retry on rate limits and server errors.
	return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
}

// IsOverloadedError checks if the provider reported overload, which warrants
// a softer user-facing message than a generic failure.
func IsOverloadedError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 529 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "overloaded")
}
