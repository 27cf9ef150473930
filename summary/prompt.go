package summary

import (
	"fmt"
	"strings"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// SummarySystemPrompt is the system prompt used for conversation compression.
// It demands a JSON-only response so the generator can parse the result
// structurally; the parse ladder in parse.go handles the cases where the
// model ignores the instruction.
const SummarySystemPrompt = `You are a conversation summarizer for a roleplay chat platform. Your task is to compress a span of conversation between a user and a character into a durable summary that preserves everything needed to continue the story later.

Respond with ONLY a JSON object. No prose before or after it, no markdown code fences. The object must have exactly these fields:

{
  "title": "a short evocative title for this span of the story",
  "summary": "four paragraphs of prose, at least 200 words total, covering: (1) what happened, in order; (2) how the relationship and emotional tone evolved; (3) important facts, names, places, and objects established; (4) where things stand now and any unresolved threads",
  "keywords": ["5 to 10 specific terms from this conversation — names, places, events, objects. No generic words like 'conversation', 'chat', or 'story'."]
}

Guidelines:
- Write the summary in third person, past tense.
- Preserve specific details: names, promises, revelations, physical changes.
- Do not invent events that did not happen.
- Do not include meta-commentary about the chat or the platform.`

// BuildSummaryUserPrompt creates the user message for a summarization call.
func BuildSummaryUserPrompt(conversationText, characterName string) string {
	return fmt.Sprintf(`Summarize the following conversation between the user and the character %q according to the format specified in your instructions.

<conversation>
%s</conversation>

Respond with only the JSON object.`, characterName, conversationText)
}

// FormatMessagesAsText renders a message range as readable dialogue for the
// summarizer. Placeholders and empty AI messages are skipped.
func FormatMessagesAsText(messages []*storage.Message, characterName string) string {
	if characterName == "" {
		characterName = "Character"
	}

	var b strings.Builder
	for _, msg := range messages {
		if msg.IsPlaceholder || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		label := "User"
		if msg.Role == storage.RoleAI {
			label = characterName
		}

		b.WriteString(label)
		b.WriteString(":\n")
		b.WriteString(msg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
