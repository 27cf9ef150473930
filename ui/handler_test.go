package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pipe1800/anima-chat-sub000/internal/testutil"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

func seededHandler(t *testing.T) (*testutil.MemoryStore, http.Handler) {
	t.Helper()
	store := testutil.NewMemoryStore()
	store.SeedConversation("conv-1", "user-1", "char-1", "Mira", 10)
	store.SeedHistory("conv-1", 2)
	return store, NewHandler(store, nil)
}

func TestListConversationsRequiresUserID(t *testing.T) {
	_, handler := seededHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/conversations", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListConversations(t *testing.T) {
	_, handler := seededHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/conversations?user_id=user-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Conversations []*storage.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].ID != "conv-1" {
		t.Errorf("unexpected conversations: %+v", body.Conversations)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	_, handler := seededHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetMessages(t *testing.T) {
	_, handler := seededHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/conv-1/messages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Messages []*storage.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Messages) != 4 {
		t.Errorf("expected 4 messages, got %d", len(body.Messages))
	}
}

func TestSummaryHTMLSanitizesMarkdown(t *testing.T) {
	store, handler := seededHandler(t)
	_, err := store.UpsertSummary(context.Background(), storage.SummaryParams{
		ConversationID: "conv-1",
		CharacterID:    "char-1",
		UserID:         "user-1",
		Title:          "The Story So Far",
		Body:           "They met in the **tavern**.\n\n<script>alert(1)</script>",
		Keywords:       []string{"tavern"},
		Boundary:       2,
	})
	if err != nil {
		t.Fatalf("seeding summary: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/conv-1/summary.html", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "<strong>tavern</strong>") {
		t.Error("markdown emphasis was not rendered")
	}
	if strings.Contains(html, "<script>") {
		t.Error("script tag survived sanitization")
	}
	if !strings.Contains(html, "The Story So Far") {
		t.Error("title missing from page")
	}
}

func TestSummaryHTMLNotFound(t *testing.T) {
	_, handler := seededHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/conversations/conv-1/summary.html", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
