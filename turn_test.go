package animachat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/pipe1800/anima-chat-sub000/internal/testutil"
	"github.com/pipe1800/anima-chat-sub000/storage"
	"github.com/pipe1800/anima-chat-sub000/streaming"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

const validSummaryJSON = `{"title":"The Story So Far","summary":"They spoke at length about the road ahead and what it might cost them.","keywords":["journey","forest","dragon","oath","tavern"]}`

// fakeResponder returns scripted response text, streamed as two chunks.
type fakeResponder struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	lastReq ResponseRequest
}

func (r *fakeResponder) StreamResponse(ctx context.Context, req ResponseRequest, onDelta func(string)) (string, error) {
	r.mu.Lock()
	r.calls++
	r.lastReq = req
	text, err := r.text, r.err
	r.mu.Unlock()

	if err != nil {
		return "", err
	}
	if onDelta != nil && len(text) > 1 {
		half := len(text) / 2
		onDelta(text[:half])
		onDelta(text[half:])
	}
	return text, nil
}

func (r *fakeResponder) request() ResponseRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReq
}

type recordingExtractor struct {
	calls chan string
}

func (e *recordingExtractor) ExtractContext(ctx context.Context, conversationID, messageID string) error {
	e.calls <- messageID
	return nil
}

func newTestEngine(t *testing.T, store *testutil.MemoryStore, responder Responder, completer summary.Completer, opts ...Option) *Engine[struct{}] {
	t.Helper()

	base := []Option{
		WithResponder(responder),
		WithCompleter(completer),
		WithSummaryConfig(summary.Config{
			Interval:     15,
			MaxAttempts:  2,
			RetryBackoff: time.Millisecond,
			LockGrace:    10 * time.Millisecond,
		}),
	}

	engine, err := New(testutil.NewMemoryDriver(store), Config{
		Client: &anthropic.Client{},
		Model:  "fallback-model",
	}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return engine
}

func collectEvents(t *testing.T, events <-chan streaming.Event) []streaming.Event {
	t.Helper()

	var out []streaming.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatal("timed out waiting for turn events")
		}
	}
}

func completionOf(t *testing.T, events []streaming.Event) *streaming.Completion {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	last := events[len(events)-1]
	if last.Type != streaming.EventTypeCompleted || last.Completion == nil {
		t.Fatalf("last event is %v, want completion marker", last.Type)
	}
	return last.Completion
}

func TestRunTurnValidation(t *testing.T) {
	store := testutil.NewMemoryStore()
	engine := newTestEngine(t, store, &fakeResponder{text: "hi"}, testutil.NewScriptedCompleter())

	if _, err := engine.RunTurn(context.Background(), TurnParams{Text: "hello"}); !errors.Is(err, ErrMissingConversationID) {
		t.Errorf("expected ErrMissingConversationID, got %v", err)
	}
	if _, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "  "}); !errors.Is(err, ErrEmptyUserMessage) {
		t.Errorf("expected ErrEmptyUserMessage, got %v", err)
	}
}

func TestRunTurnHappyPath(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)

	responder := &fakeResponder{text: "Hello there, traveler."}
	engine := newTestEngine(t, store, responder, testutil.NewScriptedCompleter())

	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}

	all := collectEvents(t, events)
	completion := completionOf(t, all)

	chunks := 0
	var streamed string
	for _, event := range all {
		if event.Type == streaming.EventTypeChunk {
			chunks++
			streamed += event.Text
		}
	}
	if chunks == 0 {
		t.Error("expected at least one chunk event")
	}
	if streamed != "Hello there, traveler." {
		t.Errorf("streamed text = %q", streamed)
	}
	if completion.Text != "Hello there, traveler." {
		t.Errorf("completion text = %q", completion.Text)
	}
	if completion.AutoSummaryTriggered {
		t.Error("no summary should trigger on the first turn")
	}
	if completion.ContextCeilingReached {
		t.Error("ceiling should not be reached with two messages")
	}

	messages, _ := store.GetMessages(context.Background(), "conv-1")
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(messages))
	}
	if messages[0].Role != storage.RoleUser || messages[0].Text != "hi" {
		t.Errorf("unexpected user message: %+v", messages[0])
	}
	final := messages[1]
	if final.IsPlaceholder {
		t.Error("AI message still a placeholder after completion")
	}
	if final.ID != completion.MessageID {
		t.Errorf("completion message ID %q does not match persisted %q", completion.MessageID, final.ID)
	}
	if store.Credits["user-1"] != 9 {
		t.Errorf("expected 9 credits after billing, got %d", store.Credits["user-1"])
	}
	if got := responder.request().Model; got != "test-model" {
		t.Errorf("expected plan model to win, got %q", got)
	}
}

func TestRunTurnInsufficientCredits(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 0)

	engine := newTestEngine(t, store, &fakeResponder{text: "ok"}, testutil.NewScriptedCompleter())

	_, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if !errors.Is(err, storage.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if store.MessageCount("conv-1") != 0 {
		t.Fatalf("billing failure must leave no messages, found %d", store.MessageCount("conv-1"))
	}

	// Top up and retry: exactly one user and one AI message, no duplicates.
	store.Credits["user-1"] = 5
	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("retry after top-up failed: %v", err)
	}
	collectEvents(t, events)

	if store.MessageCount("conv-1") != 2 {
		t.Errorf("expected 2 messages after retry, got %d", store.MessageCount("conv-1"))
	}
}

func TestRunTurnProviderFailure(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)

	responder := &fakeResponder{err: errors.New("stream died")}
	engine := newTestEngine(t, store, responder, testutil.NewScriptedCompleter())

	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}

	all := collectEvents(t, events)
	completion := completionOf(t, all)

	sawError := false
	for _, event := range all {
		if event.Type == streaming.EventTypeError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error event before completion")
	}
	if completion.Text != failedResponseText {
		t.Errorf("completion text = %q, want visible failure message", completion.Text)
	}

	// The placeholder is finalized with the failure text, never left dangling.
	messages, _ := store.GetMessages(context.Background(), "conv-1")
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	final := messages[1]
	if final.IsPlaceholder {
		t.Error("placeholder not finalized after provider failure")
	}
	if final.Text != failedResponseText {
		t.Errorf("final text = %q", final.Text)
	}
}

func TestRunTurnAutoSummaryTrigger(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)
	store.Settings["user-1"] = &storage.AddonSettings{AutoSummary: true}
	store.SeedHistory("conv-1", 15)

	completer := testutil.NewScriptedCompleter(validSummaryJSON)
	engine := newTestEngine(t, store, &fakeResponder{text: "onward"}, completer)

	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "what happened so far?"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	completion := completionOf(t, collectEvents(t, events))

	if !completion.AutoSummaryTriggered {
		t.Error("expected AutoSummaryTriggered at the 15th AI message")
	}
	if completer.Calls() != 1 {
		t.Errorf("expected exactly one summarization call, got %d", completer.Calls())
	}
	if store.AutoSummaryCount("conv-1") != 1 {
		t.Errorf("expected one automatic summary, got %d", store.AutoSummaryCount("conv-1"))
	}

	boundary, _ := store.SummaryBoundary(context.Background(), "conv-1")
	if boundary != 15 {
		t.Errorf("expected boundary 15, got %d", boundary)
	}

	// The next turn is past the boundary but short of the next interval, so
	// it must not fire again.
	events, err = engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "and then?"})
	if err != nil {
		t.Fatalf("second RunTurn returned error: %v", err)
	}
	completion = completionOf(t, collectEvents(t, events))

	if completion.AutoSummaryTriggered {
		t.Error("summary fired again before the next interval")
	}
	if completer.Calls() != 1 {
		t.Errorf("expected no further summarization calls, got %d", completer.Calls())
	}
	if store.AutoSummaryCount("conv-1") != 1 {
		t.Errorf("expected still one automatic summary, got %d", store.AutoSummaryCount("conv-1"))
	}
}

func TestRunTurnNoSummaryWithoutAddon(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)
	store.SeedHistory("conv-1", 15)
	// AutoSummary left off.

	completer := testutil.NewScriptedCompleter(validSummaryJSON)
	engine := newTestEngine(t, store, &fakeResponder{text: "onward"}, completer)

	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	completion := completionOf(t, collectEvents(t, events))

	if completion.AutoSummaryTriggered {
		t.Error("summary must not trigger when the addon is disabled")
	}
	if completer.Calls() != 0 {
		t.Errorf("expected no summarization calls, got %d", completer.Calls())
	}
}

func TestRunTurnSummaryFailureDegrades(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)
	store.Settings["user-1"] = &storage.AddonSettings{AutoSummary: true}
	store.SeedHistory("conv-1", 15)

	completer := testutil.NewScriptedCompleter()
	completer.QueueError(errors.New("model unavailable"))
	completer.QueueError(errors.New("model unavailable"))

	engine := newTestEngine(t, store, &fakeResponder{text: "still here"}, completer)

	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	completion := completionOf(t, collectEvents(t, events))

	// Turn succeeds without the summary.
	if completion.Text != "still here" {
		t.Errorf("completion text = %q", completion.Text)
	}
	if completion.AutoSummaryTriggered {
		t.Error("failed summarization must not be reported as triggered")
	}
	if store.AutoSummaryCount("conv-1") != 0 {
		t.Errorf("expected no summaries, got %d", store.AutoSummaryCount("conv-1"))
	}
	if completer.Calls() != 2 {
		t.Errorf("expected 2 attempts, got %d", completer.Calls())
	}
}

func TestRunTurnDispatchesExtractionOnce(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)

	extractor := &recordingExtractor{calls: make(chan string, 4)}
	engine := newTestEngine(t, store, &fakeResponder{text: "done"}, testutil.NewScriptedCompleter(),
		WithExtractor(extractor))

	events, err := engine.RunTurn(context.Background(), TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	completion := completionOf(t, collectEvents(t, events))

	select {
	case messageID := <-extractor.calls:
		if messageID != completion.MessageID {
			t.Errorf("extraction for message %q, want %q", messageID, completion.MessageID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("extraction was never dispatched")
	}

	select {
	case <-extractor.calls:
		t.Fatal("extraction dispatched more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunTurnCancelledCallerStillFinalizes(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)

	engine := newTestEngine(t, store, &fakeResponder{text: "persisted anyway"}, testutil.NewScriptedCompleter())

	ctx, cancel := context.WithCancel(context.Background())
	events, err := engine.RunTurn(ctx, TurnParams{ConversationID: "conv-1", Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	cancel()

	completion := completionOf(t, collectEvents(t, events))
	if completion.Text != "persisted anyway" {
		t.Errorf("completion text = %q", completion.Text)
	}

	messages, _ := store.GetMessages(context.Background(), "conv-1")
	if len(messages) != 2 || messages[1].IsPlaceholder {
		t.Fatalf("turn did not persist after caller cancellation: %+v", messages)
	}
}

func TestSummarizeManual(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)
	store.SeedHistory("conv-1", 3)

	completer := testutil.NewScriptedCompleter(validSummaryJSON)
	engine := newTestEngine(t, store, &fakeResponder{text: "x"}, completer)

	record, err := engine.Summarize(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if record.IsAuto {
		t.Error("manual summary must not be marked automatic")
	}
	if record.Title != "The Story So Far" {
		t.Errorf("title = %q", record.Title)
	}
	if store.AutoSummaryCount("conv-1") != 0 {
		t.Error("manual summary must not occupy the automatic slot")
	}

	// A second manual request creates a second record.
	if _, err := engine.Summarize(context.Background(), "conv-1"); err != nil {
		t.Fatalf("second Summarize returned error: %v", err)
	}
	summaries, _ := store.ListSummaries(context.Background(), "conv-1")
	if len(summaries) != 2 {
		t.Errorf("expected 2 manual summaries, got %d", len(summaries))
	}
}

func TestSummaryStats(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)
	store.SeedHistory("conv-1", 4)

	engine := newTestEngine(t, store, &fakeResponder{text: "x"}, testutil.NewScriptedCompleter())

	stats, err := engine.SummaryStats(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("SummaryStats returned error: %v", err)
	}
	if stats.TotalMessages != 8 {
		t.Errorf("TotalMessages = %d, want 8", stats.TotalMessages)
	}
	if stats.AISequence != 4 {
		t.Errorf("AISequence = %d, want 4", stats.AISequence)
	}
	if stats.Boundary != 0 {
		t.Errorf("Boundary = %d, want 0", stats.Boundary)
	}
	if stats.NextTriggerAt != 15 {
		t.Errorf("NextTriggerAt = %d, want 15", stats.NextTriggerAt)
	}
	if stats.EstimatedWindowTokens <= 0 {
		t.Errorf("EstimatedWindowTokens = %d, want positive", stats.EstimatedWindowTokens)
	}
	if stats.SummarizationActive {
		t.Error("no summarization should be active")
	}
}
