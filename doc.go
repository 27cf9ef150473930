// Package animachat is the conversation engine for a persona-chat platform:
// per-turn context assembly within a token budget, interval-based automatic
// history compression, and streamed response generation backed by Postgres.
//
// An Engine is created with a database driver and an Anthropic client:
//
//	pool, _ := pgxpool.New(ctx, databaseURL)
//	engine, _ := animachat.New(pgxv5.New(pool), animachat.Config{
//		Client: &client,
//		Model:  "claude-sonnet-4-5-20250929",
//	})
//
//	events, err := engine.RunTurn(ctx, animachat.TurnParams{
//		ConversationID: conversationID,
//		Text:           "Tell me about the lighthouse.",
//	})
//
// RunTurn emits a stream of text chunks followed by a completion marker. Each
// turn runs independently; concurrent turns on one conversation are safe, with
// summarization work deduplicated through a per-conversation lock.
package animachat
