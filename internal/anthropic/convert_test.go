package anthropic

import (
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

func TestConvertMessages(t *testing.T) {
	messages := []*storage.Message{
		{Role: storage.RoleUser, Text: "hello"},
		{Role: storage.RoleAI, Text: "hi there"},
		{Role: storage.RoleAI, Text: "", IsPlaceholder: true},
		{Role: storage.RoleAI, Text: "   "},
		{Role: storage.RoleUser, Text: "how are you"},
	}

	params := ConvertMessages(messages)
	if len(params) != 3 {
		t.Fatalf("got %d params, want 3 (placeholder and blank dropped)", len(params))
	}
	if params[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("params[0].Role = %s, want user", params[0].Role)
	}
	if params[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("params[1].Role = %s, want assistant", params[1].Role)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "rate limited", err: &anthropic.Error{StatusCode: 429}, want: true},
		{name: "server error", err: &anthropic.Error{StatusCode: 500}, want: true},
		{name: "overloaded", err: &anthropic.Error{StatusCode: 529}, want: true},
		{name: "bad request", err: &anthropic.Error{StatusCode: 400}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOverloadedError(t *testing.T) {
	if !IsOverloadedError(&anthropic.Error{StatusCode: 529}) {
		t.Error("status 529 should be overloaded")
	}
	if !IsOverloadedError(errors.New("Overloaded")) {
		t.Error("overloaded message should match")
	}
	if IsOverloadedError(errors.New("boom")) {
		t.Error("plain error is not overloaded")
	}
}
