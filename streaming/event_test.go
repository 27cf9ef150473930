package streaming

import "testing"

func TestEventConstructors(t *testing.T) {
	chunk := Chunk("hello")
	if chunk.Type != EventTypeChunk || chunk.Text != "hello" || chunk.Completion != nil {
		t.Errorf("Chunk built %+v", chunk)
	}

	errEvent := Error("something went wrong")
	if errEvent.Type != EventTypeError || errEvent.Text != "something went wrong" {
		t.Errorf("Error built %+v", errEvent)
	}

	done := Completed(Completion{
		MessageID:             "m1",
		Text:                  "full text",
		ContextCeilingReached: true,
		AutoSummaryTriggered:  true,
	})
	if done.Type != EventTypeCompleted {
		t.Fatalf("Completed type = %s", done.Type)
	}
	if done.Completion == nil || done.Completion.MessageID != "m1" {
		t.Errorf("Completed built %+v", done.Completion)
	}
	if !done.Completion.ContextCeilingReached || !done.Completion.AutoSummaryTriggered {
		t.Error("completion flags lost")
	}
}

func TestAccumulatorStartsEmpty(t *testing.T) {
	acc := NewAccumulator()
	if acc.Text() != "" {
		t.Errorf("Text() = %q, want empty", acc.Text())
	}
	if in, out := acc.Usage(); in != 0 || out != 0 {
		t.Errorf("Usage() = %d, %d, want zeros", in, out)
	}
	if acc.StopReason() != "" {
		t.Errorf("StopReason() = %q, want empty", acc.StopReason())
	}
}
