package ui

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// NewHandler returns a read-only http.Handler over the engine's store.
//
// Usage:
//
//	http.Handle("/admin/", http.StripPrefix("/admin", ui.NewHandler(engine.Store(), cfg)))
func NewHandler(store storage.Store, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	if err := cfg.validate(); err != nil {
		panic("ui: invalid configuration: " + err.Error())
	}

	h := &handler{
		store:    store,
		config:   cfg,
		renderer: newMarkdownRenderer(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", h.handleListConversations)
	mux.HandleFunc("GET /conversations/{id}", h.handleGetConversation)
	mux.HandleFunc("GET /conversations/{id}/messages", h.handleGetMessages)
	mux.HandleFunc("GET /conversations/{id}/summaries", h.handleListSummaries)
	mux.HandleFunc("GET /conversations/{id}/summary.html", h.handleSummaryHTML)

	return recoveryMiddleware(mux, cfg.Logger)
}

type handler struct {
	store    storage.Store
	config   *Config
	renderer *markdownRenderer
}

func (h *handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	conversations, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	if len(conversations) > h.config.PageSize {
		conversations = conversations[:h.config.PageSize]
	}
	h.writeJSON(w, map[string]any{"conversations": conversations})
}

func (h *handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	conversation, err := h.store.GetConversation(r.Context(), conversationID)
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	boundary, err := h.store.SummaryBoundary(r.Context(), conversationID)
	if err != nil {
		h.serveStoreError(w, err)
		return
	}

	h.writeJSON(w, map[string]any{
		"conversation":     conversation,
		"summary_boundary": boundary,
	})
}

func (h *handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"messages": messages})
}

func (h *handler) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListSummaries(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serveStoreError(w, err)
		return
	}
	h.writeJSON(w, map[string]any{"summaries": summaries})
}

func (h *handler) handleSummaryHTML(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.GetAutoSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serveStoreError(w, err)
		return
	}

	body, err := h.renderer.render(summary.Body)
	if err != nil {
		if h.config.Logger != nil {
			h.config.Logger.Error("summary rendering failed", "summary_id", summary.ID, "error", err)
		}
		h.writeError(w, http.StatusInternalServerError, "failed to render summary")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(summaryPage(summary.Title, body))
}

func (h *handler) serveStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if h.config.Logger != nil {
		h.config.Logger.Error("store query failed", "error", err)
	}
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil && h.config.Logger != nil {
		h.config.Logger.Error("response encoding failed", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message},
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				}
				http.Error(w, `{"error":{"message":"internal server error"}}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
