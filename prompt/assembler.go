package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// ChatMode selects the response style the character is instructed to use.
type ChatMode string

const (
	// ChatModeDialogue is terse, dialogue-only roleplay.
	ChatModeDialogue ChatMode = "dialogue"

	// ChatModeNarrative interleaves dialogue with action and scene description.
	ChatModeNarrative ChatMode = "narrative"
)

// TimeAwarenessThreshold is the minimum gap since the last AI message before
// the prompt mentions elapsed time at all. Below it the gap is noise.
const TimeAwarenessThreshold = 30 * time.Second

// Input carries everything the assembler needs. WorldInfo and Memories are
// expected to be pre-filtered (FilterWorldInfo, FilterMemories).
type Input struct {
	Character *storage.Character
	Persona   *storage.Persona
	Settings  *storage.AddonSettings
	Context   *storage.SituationalContext
	Mode      ChatMode

	// SinceLastAI is the elapsed time since the character's last message.
	// Zero means unknown (first turn) and disables time awareness.
	SinceLastAI time.Duration

	WorldInfo []*storage.WorldInfoEntry
	Memories  []*storage.Memory
	Summary   *storage.Summary
}

// Build assembles the system prompt. It is a pure function of its input:
// no I/O, no randomness, identical inputs produce identical output.
//
// Section order is fixed: persona, mode rules, situational context, time
// awareness, addon hints, world info, memories, latest summary. Optional
// sections appear only when their addon flag is enabled and they have
// non-empty content.
func Build(in Input) string {
	settings := in.Settings
	if settings == nil {
		settings = &storage.AddonSettings{}
	}

	var b strings.Builder

	writeCharacter(&b, in.Character)
	writePersona(&b, in.Persona)
	writeModeRules(&b, in.Mode, characterName(in.Character))
	writeSituationalContext(&b, settings, in.Context)
	writeTimeAwareness(&b, settings, in.SinceLastAI)
	writeHints(&b, settings)
	writeWorldInfo(&b, settings, in.WorldInfo)
	writeMemories(&b, settings, in.Memories)
	writeSummary(&b, settings, in.Summary)

	return strings.TrimRight(b.String(), "\n")
}

func characterName(c *storage.Character) string {
	if c == nil || c.Name == "" {
		return "the character"
	}
	return c.Name
}

func writeCharacter(b *strings.Builder, c *storage.Character) {
	if c == nil {
		return
	}
	fmt.Fprintf(b, "You are %s. Stay in character at all times.\n\n", c.Name)
	if c.Definition != "" {
		b.WriteString(c.Definition)
		b.WriteString("\n\n")
	}
}

func writePersona(b *strings.Builder, p *storage.Persona) {
	if p == nil || p.Description == "" {
		return
	}
	fmt.Fprintf(b, "The user you are talking to goes by %s: %s\n\n", p.Name, p.Description)
}

func writeModeRules(b *strings.Builder, mode ChatMode, name string) {
	switch mode {
	case ChatModeNarrative:
		fmt.Fprintf(b, "Response style: narrative roleplay. Interleave %s's dialogue with action and scene description written in third person. Use asterisks or plain prose for actions. Keep the story moving.\n\n", name)
	default:
		fmt.Fprintf(b, "Response style: dialogue only. Respond with %s's spoken words, concise and in first person. No narration, no action descriptions, no out-of-character commentary.\n\n", name)
	}
}

func writeSituationalContext(b *strings.Builder, settings *storage.AddonSettings, sc *storage.SituationalContext) {
	if sc.IsZero() {
		return
	}

	var lines []string
	appendLine := func(enabled bool, label, value string) {
		if enabled && value != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, value))
		}
	}
	appendLine(settings.MoodTracking, "Mood", sc.Mood)
	appendLine(settings.ClothingTracking, "Clothing", sc.Clothing)
	appendLine(settings.LocationTracking, "Location", sc.Location)
	appendLine(settings.TimeAndWeather, "Time and weather", sc.TimeWeather)
	appendLine(settings.RelationshipStatus, "Relationship", sc.Relationship)
	appendLine(settings.CharacterPosition, "Position", sc.Position)

	if len(lines) == 0 {
		return
	}
	b.WriteString("Current situation:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
}

func writeTimeAwareness(b *strings.Builder, settings *storage.AddonSettings, since time.Duration) {
	if !settings.TimeAwareness || since < TimeAwarenessThreshold {
		return
	}
	fmt.Fprintf(b, "Time has passed since your last message: %s. Acknowledge the gap naturally if it fits the scene.\n\n", timeGapBucket(since))
}

// timeGapBucket maps an elapsed duration to a coarse description. Exact
// durations would invite the model to do arithmetic; buckets keep it natural.
func timeGapBucket(since time.Duration) string {
	switch {
	case since < 10*time.Minute:
		return "a short while"
	case since < 3*time.Hour:
		return "a few hours at most"
	case since < 24*time.Hour:
		return "a long stretch, most of a day"
	default:
		return "a very long time, a day or more"
	}
}

func writeHints(b *strings.Builder, settings *storage.AddonSettings) {
	hints := strings.TrimSpace(settings.Hints)
	if hints == "" {
		return
	}
	b.WriteString("Additional guidance from the user:\n")
	b.WriteString(hints)
	b.WriteString("\n\n")
}

func writeWorldInfo(b *strings.Builder, settings *storage.AddonSettings, entries []*storage.WorldInfoEntry) {
	if !settings.DynamicWorldInfo || len(entries) == 0 {
		return
	}
	b.WriteString("Relevant world lore:\n")
	for _, entry := range entries {
		fmt.Fprintf(b, "- %s\n", entry.Text)
	}
	b.WriteString("\n")
}

func writeMemories(b *strings.Builder, settings *storage.AddonSettings, memories []*storage.Memory) {
	if !settings.EnhancedMemory || len(memories) == 0 {
		return
	}
	b.WriteString("Things you remember from earlier conversations:\n")
	for _, memory := range memories {
		fmt.Fprintf(b, "- %s\n", memory.Text)
	}
	b.WriteString("\n")
}

func writeSummary(b *strings.Builder, settings *storage.AddonSettings, summary *storage.Summary) {
	if !settings.AutoSummary || summary == nil || strings.TrimSpace(summary.Body) == "" {
		return
	}
	b.WriteString("Summary of the story so far:\n")
	b.WriteString(summary.Body)
	b.WriteString("\n\n")
}
