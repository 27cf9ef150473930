package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

// Logger is a minimal logging interface for summarization components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log messages.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Completer is the narrow model contract the Generator depends on. It
// returns the full text of a single-shot completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// AnthropicCompleter adapts the Anthropic SDK's streaming API to the
// Completer contract.
type AnthropicCompleter struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicCompleter creates a completer for the given model. Zero
// maxTokens and temperature fall back to the defaults.
func NewAnthropicCompleter(client *anthropic.Client, model string, maxTokens int, temperature float64) *AnthropicCompleter {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &AnthropicCompleter{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Complete runs a streaming completion and accumulates it into one string.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", fmt.Errorf("%w: failed to accumulate stream: %v", ErrGenerationFailed, err)
		}
	}

	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return text.String(), nil
}

// Generator drives a model call to compress a message range into a Result.
type Generator struct {
	completer Completer
	logger    Logger
}

// NewGenerator creates a Generator. A nil logger disables logging.
func NewGenerator(completer Completer, logger Logger) *Generator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Generator{completer: completer, logger: logger}
}

// Generate summarizes the given message range.
//
// Provider failures are returned as errors. Malformed model output is not an
// error: the parse ladder always produces a usable Result from non-empty
// output.
func (g *Generator) Generate(ctx context.Context, messages []*storage.Message, characterName string) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyRange
	}

	conversationText := FormatMessagesAsText(messages, characterName)
	if strings.TrimSpace(conversationText) == "" {
		return nil, ErrEmptyRange
	}

	raw, err := g.completer.Complete(ctx, SummarySystemPrompt, BuildSummaryUserPrompt(conversationText, characterName))
	if err != nil {
		return nil, err
	}

	result, err := ParseModelOutput(raw, conversationText, characterName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if result.Outcome != ParseOutcomeParsed {
		g.logger.Warn("summary output required recovery",
			"outcome", result.Outcome.String(),
			"raw_length", len(raw),
		)
	}
	g.logger.Debug("summary generated",
		"outcome", result.Outcome.String(),
		"keywords", len(result.Keywords),
	)

	return result, nil
}
