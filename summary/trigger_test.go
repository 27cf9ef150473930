package summary

import (
	"fmt"
	"testing"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// buildHistory creates pairs alternating user/AI messages with gapless
// ordinals.
func buildHistory(pairs int) []*storage.Message {
	var history []*storage.Message
	ordinal := 0
	for i := 1; i <= pairs; i++ {
		ordinal++
		history = append(history, &storage.Message{
			ID:      fmt.Sprintf("u%d", i),
			Ordinal: ordinal,
			Role:    storage.RoleUser,
			Text:    fmt.Sprintf("user message %d", i),
		})
		ordinal++
		history = append(history, &storage.Message{
			ID:      fmt.Sprintf("a%d", i),
			Ordinal: ordinal,
			Role:    storage.RoleAI,
			Text:    fmt.Sprintf("ai message %d", i),
		})
	}
	return history
}

type stubLocks struct {
	held bool
}

func (s stubLocks) Held(string) bool { return s.held }

func TestTriggerEvaluatorExactBoundary(t *testing.T) {
	tests := []struct {
		name         string
		pairs        int
		lastBoundary int
		wantTrigger  bool
		wantBoundary int
	}{
		{name: "below interval", pairs: 14, lastBoundary: 0, wantTrigger: false},
		{name: "exactly at interval", pairs: 15, lastBoundary: 0, wantTrigger: true, wantBoundary: 15},
		{name: "past interval without crossing", pairs: 16, lastBoundary: 0, wantTrigger: false},
		{name: "boundary already advanced", pairs: 15, lastBoundary: 15, wantTrigger: false},
		{name: "second crossing", pairs: 30, lastBoundary: 15, wantTrigger: true, wantBoundary: 30},
		{name: "second crossing not yet reached", pairs: 29, lastBoundary: 15, wantTrigger: false},
	}

	eval := NewTriggerEvaluator(15, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := eval.Evaluate("conv-1", buildHistory(tt.pairs), tt.lastBoundary)
			if decision.Triggered != tt.wantTrigger {
				t.Fatalf("Triggered = %v, want %v", decision.Triggered, tt.wantTrigger)
			}
			if tt.wantTrigger && decision.Boundary != tt.wantBoundary {
				t.Errorf("Boundary = %d, want %d", decision.Boundary, tt.wantBoundary)
			}
		})
	}
}

func TestTriggerEvaluatorFiresOncePerCrossing(t *testing.T) {
	eval := NewTriggerEvaluator(15, nil)
	history := buildHistory(15)

	first := eval.Evaluate("conv-1", history, 0)
	if !first.Triggered {
		t.Fatal("expected first evaluation to trigger")
	}

	// After the boundary is persisted, the same history must not re-trigger.
	second := eval.Evaluate("conv-1", history, first.Boundary)
	if second.Triggered {
		t.Error("re-evaluation at the same count must not trigger again")
	}
}

func TestTriggerEvaluatorSkipsPlaceholdersAndEmpties(t *testing.T) {
	history := buildHistory(14)
	history = append(history,
		&storage.Message{ID: "p1", Ordinal: 29, Role: storage.RoleAI, IsPlaceholder: true},
		&storage.Message{ID: "e1", Ordinal: 30, Role: storage.RoleAI, Text: "   "},
	)

	eval := NewTriggerEvaluator(15, nil)
	if decision := eval.Evaluate("conv-1", history, 0); decision.Triggered {
		t.Fatal("placeholders and empty AI messages must not advance the sequence")
	}

	history = append(history, &storage.Message{
		ID: "a15", Ordinal: 31, Role: storage.RoleAI, Text: "ai message 15",
	})
	decision := eval.Evaluate("conv-1", history, 0)
	if !decision.Triggered {
		t.Fatal("expected trigger once a real fifteenth AI message lands")
	}
	for _, msg := range decision.Range {
		if msg.ID == "p1" || msg.ID == "e1" {
			t.Errorf("range must not include skipped message %s", msg.ID)
		}
	}
}

func TestTriggerEvaluatorRange(t *testing.T) {
	eval := NewTriggerEvaluator(15, nil)
	history := buildHistory(15)

	decision := eval.Evaluate("conv-1", history, 0)
	if !decision.Triggered {
		t.Fatal("expected trigger")
	}

	aiCount, userCount := 0, 0
	for _, msg := range decision.Range {
		if msg.Role == storage.RoleAI {
			aiCount++
		} else {
			userCount++
		}
	}
	if aiCount != 15 {
		t.Errorf("range has %d AI messages, want 15", aiCount)
	}
	// User messages interleaved between the first and last AI message of the
	// range: user 2 through user 15.
	if userCount != 14 {
		t.Errorf("range has %d user messages, want 14", userCount)
	}

	for i := 1; i < len(decision.Range); i++ {
		if decision.Range[i].Ordinal <= decision.Range[i-1].Ordinal {
			t.Fatal("range is not in chronological order")
		}
	}
}

func TestTriggerEvaluatorSecondIntervalRange(t *testing.T) {
	eval := NewTriggerEvaluator(15, nil)
	history := buildHistory(30)

	decision := eval.Evaluate("conv-1", history, 15)
	if !decision.Triggered {
		t.Fatal("expected trigger at second crossing")
	}

	if first := decision.Range[0]; first.ID != "a16" {
		t.Errorf("range starts at %s, want a16", first.ID)
	}
	if last := decision.Range[len(decision.Range)-1]; last.ID != "a30" {
		t.Errorf("range ends at %s, want a30", last.ID)
	}
}

func TestTriggerEvaluatorLockShortCircuit(t *testing.T) {
	eval := NewTriggerEvaluator(15, stubLocks{held: true})
	if decision := eval.Evaluate("conv-1", buildHistory(15), 0); decision.Triggered {
		t.Error("evaluator must not trigger while the lock is held")
	}

	eval = NewTriggerEvaluator(15, stubLocks{held: false})
	if decision := eval.Evaluate("conv-1", buildHistory(15), 0); !decision.Triggered {
		t.Error("evaluator must trigger once the lock is released")
	}
}
