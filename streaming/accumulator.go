package streaming

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Accumulator folds Anthropic stream events into the response text. Chat
// responses are text-only; non-text blocks are ignored.
type Accumulator struct {
	text         strings.Builder
	stopReason   string
	inputTokens  int
	outputTokens int
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Process consumes one provider event and returns the incremental text it
// carried, if any.
func (a *Accumulator) Process(event anthropic.MessageStreamEventUnion) string {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		a.inputTokens = int(e.Message.Usage.InputTokens)

	case anthropic.ContentBlockStartEvent:
		if block, ok := e.ContentBlock.AsAny().(anthropic.TextBlock); ok && block.Text != "" {
			a.text.WriteString(block.Text)
			return block.Text
		}

	case anthropic.ContentBlockDeltaEvent:
		if delta, ok := e.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
			a.text.WriteString(delta.Text)
			return delta.Text
		}

	case anthropic.MessageDeltaEvent:
		a.stopReason = string(e.Delta.StopReason)
		a.outputTokens = int(e.Usage.OutputTokens)
	}
	return ""
}

// Text returns the full response accumulated so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// StopReason returns the provider stop reason, if one was reported.
func (a *Accumulator) StopReason() string {
	return a.stopReason
}

// Usage returns the input and output token counts reported by the provider.
func (a *Accumulator) Usage() (input, output int) {
	return a.inputTokens, a.outputTokens
}
