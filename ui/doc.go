// Package ui provides a read-only admin HTTP handler for inspecting
// conversations, messages, and summaries.
//
// The handler serves JSON endpoints plus an HTML view of summary prose,
// rendered from markdown and sanitized. It is intended to be mounted behind
// whatever authentication the host application already has; it performs no
// authentication of its own.
//
// Usage:
//
//	handler := ui.NewHandler(engine.Store(), nil)
//	http.Handle("/admin/", http.StripPrefix("/admin", handler))
//
// Endpoints:
//
//	GET /conversations?user_id={id}       List a user's conversations
//	GET /conversations/{id}               Conversation detail
//	GET /conversations/{id}/messages      Message history
//	GET /conversations/{id}/summaries     All summaries, newest first
//	GET /conversations/{id}/summary.html  Latest automatic summary as HTML
package ui
