package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

func fullInput() Input {
	return Input{
		Character: &storage.Character{ID: "c1", Name: "Mira", Definition: "A lighthouse keeper's daughter."},
		Persona:   &storage.Persona{Name: "Ash", Description: "A traveling cartographer."},
		Settings: &storage.AddonSettings{
			DynamicWorldInfo: true,
			EnhancedMemory:   true,
			MoodTracking:     true,
			LocationTracking: true,
			TimeAwareness:    true,
			AutoSummary:      true,
			Hints:            "Keep responses under three sentences.",
		},
		Context:     &storage.SituationalContext{Mood: "wistful", Location: "the cliff path"},
		Mode:        ChatModeNarrative,
		SinceLastAI: 2 * time.Hour,
		WorldInfo:   []*storage.WorldInfoEntry{{Text: "The lighthouse has been dark for a decade."}},
		Memories:    []*storage.Memory{{Text: "Ash promised to return before winter."}},
		Summary:     &storage.Summary{Body: "Mira and Ash met at the harbor."},
	}
}

func TestBuildSectionOrder(t *testing.T) {
	out := Build(fullInput())

	markers := []string{
		"You are Mira",
		"goes by Ash",
		"Response style: narrative",
		"Current situation:",
		"Time has passed",
		"Additional guidance from the user:",
		"Relevant world lore:",
		"Things you remember",
		"Summary of the story so far:",
	}

	last := -1
	for _, marker := range markers {
		idx := strings.Index(out, marker)
		if idx < 0 {
			t.Fatalf("missing section %q in output:\n%s", marker, out)
		}
		if idx < last {
			t.Errorf("section %q out of order", marker)
		}
		last = idx
	}
}

func TestBuildDeterministic(t *testing.T) {
	in := fullInput()
	if Build(in) != Build(in) {
		t.Error("identical inputs must produce identical output")
	}
}

func TestBuildOmitsDisabledAndEmptySections(t *testing.T) {
	in := fullInput()
	in.Settings = &storage.AddonSettings{
		// World info enabled but no content; memory disabled despite content.
		DynamicWorldInfo: true,
		AutoSummary:      true,
	}
	in.WorldInfo = nil
	in.Summary = &storage.Summary{Body: "   "}

	out := Build(in)
	for _, absent := range []string{
		"Relevant world lore:",
		"Things you remember",
		"Summary of the story so far:",
		"Current situation:",
		"Time has passed",
		"Additional guidance",
	} {
		if strings.Contains(out, absent) {
			t.Errorf("output contains %q, should be omitted:\n%s", absent, out)
		}
	}
}

func TestBuildSituationalContextPerFieldFlags(t *testing.T) {
	in := Input{
		Character: &storage.Character{Name: "Mira"},
		Settings:  &storage.AddonSettings{MoodTracking: true},
		Context:   &storage.SituationalContext{Mood: "wistful", Location: "the cliff path"},
	}

	out := Build(in)
	if !strings.Contains(out, "Mood: wistful") {
		t.Error("enabled mood field missing")
	}
	if strings.Contains(out, "cliff path") {
		t.Error("location surfaced without its flag")
	}
}

func TestBuildModeRules(t *testing.T) {
	in := Input{Character: &storage.Character{Name: "Mira"}, Mode: ChatModeDialogue}
	if out := Build(in); !strings.Contains(out, "dialogue only") {
		t.Errorf("dialogue mode rules missing:\n%s", out)
	}

	in.Mode = ChatModeNarrative
	if out := Build(in); !strings.Contains(out, "narrative roleplay") {
		t.Errorf("narrative mode rules missing:\n%s", out)
	}
}

func TestBuildTimeAwarenessThreshold(t *testing.T) {
	in := Input{
		Character:   &storage.Character{Name: "Mira"},
		Settings:    &storage.AddonSettings{TimeAwareness: true},
		SinceLastAI: 10 * time.Second,
	}
	if out := Build(in); strings.Contains(out, "Time has passed") {
		t.Error("gaps below the threshold must not be surfaced")
	}

	tests := []struct {
		since time.Duration
		want  string
	}{
		{45 * time.Second, "a short while"},
		{30 * time.Minute, "a few hours at most"},
		{5 * time.Hour, "most of a day"},
		{48 * time.Hour, "a day or more"},
	}
	for _, tt := range tests {
		in.SinceLastAI = tt.since
		if out := Build(in); !strings.Contains(out, tt.want) {
			t.Errorf("since=%s: want bucket %q in output", tt.since, tt.want)
		}
	}
}
