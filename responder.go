package animachat

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	internalanthropic "github.com/pipe1800/anima-chat-sub000/internal/anthropic"
	"github.com/pipe1800/anima-chat-sub000/storage"
	"github.com/pipe1800/anima-chat-sub000/streaming"
)

// ResponseRequest carries one main-response generation call.
type ResponseRequest struct {
	Model     string
	System    string
	Messages  []*storage.Message
	MaxTokens int64
}

// Responder streams the main model response. onDelta is invoked for each
// incremental text piece; the full response text is returned when the stream
// ends. Implementations return partial text alongside a non-nil error when a
// stream dies midway.
type Responder interface {
	StreamResponse(ctx context.Context, req ResponseRequest, onDelta func(delta string)) (string, error)
}

// anthropicResponder is the production Responder backed by the Anthropic
// streaming API.
type anthropicResponder struct {
	client *anthropic.Client
}

func newAnthropicResponder(client *anthropic.Client) *anthropicResponder {
	return &anthropicResponder{client: client}
}

func (r *anthropicResponder) StreamResponse(ctx context.Context, req ResponseRequest, onDelta func(delta string)) (string, error) {
	stream := r.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: internalanthropic.ConvertMessages(req.Messages),
	})

	acc := streaming.NewAccumulator()
	for stream.Next() {
		if delta := acc.Process(stream.Current()); delta != "" && onDelta != nil {
			onDelta(delta)
		}
	}

	if err := stream.Err(); err != nil {
		return acc.Text(), fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return acc.Text(), nil
}
