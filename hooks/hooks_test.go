package hooks

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryTriggersInOrder(t *testing.T) {
	r := NewRegistry()

	var order []int
	r.OnBeforeTurn(func(ctx context.Context, conversationID, userText string) error {
		order = append(order, 1)
		return nil
	})
	r.OnBeforeTurn(func(ctx context.Context, conversationID, userText string) error {
		order = append(order, 2)
		return nil
	})

	if err := r.TriggerBeforeTurn(context.Background(), "conv-1", "hi"); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("hooks ran in order %v, want [1 2]", order)
	}
}

func TestRegistryStopsOnError(t *testing.T) {
	r := NewRegistry()

	wantErr := errors.New("hook failed")
	ran := false
	r.OnBeforeSummary(func(ctx context.Context, conversationID string, boundary int) error {
		return wantErr
	})
	r.OnBeforeSummary(func(ctx context.Context, conversationID string, boundary int) error {
		ran = true
		return nil
	})

	if err := r.TriggerBeforeSummary(context.Background(), "conv-1", 15); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if ran {
		t.Error("later hook ran after earlier hook failed")
	}
}

func TestRegistryEmptyTriggers(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if err := r.TriggerBeforeTurn(ctx, "c", "t"); err != nil {
		t.Error(err)
	}
	if err := r.TriggerAfterTurn(ctx, &TurnInfo{}); err != nil {
		t.Error(err)
	}
	if err := r.TriggerAfterSummary(ctx, nil, nil); err != nil {
		t.Error(err)
	}
	if err := r.TriggerExtractionDispatched(ctx, "c", "m"); err != nil {
		t.Error(err)
	}
}

func TestRegistryPassesTurnInfo(t *testing.T) {
	r := NewRegistry()

	var got *TurnInfo
	r.OnAfterTurn(func(ctx context.Context, info *TurnInfo) error {
		got = info
		return nil
	})

	want := &TurnInfo{
		ConversationID:       "conv-1",
		MessageID:            "msg-1",
		AutoSummaryTriggered: true,
	}
	if err := r.TriggerAfterTurn(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("hook received %+v, want %+v", got, want)
	}
}
