// Package summary implements automatic conversation compression: a token
// estimator, an interval-based trigger evaluator, a per-conversation lock
// manager, and an LLM-backed generator that turns a message range into a
// durable summary record.
//
// The trigger fires exactly once per interval of AI turns. Generation is
// guarded by the lock manager so concurrent turns on one conversation
// converge on a single compression, and the store's uniqueness constraint
// backstops races the lock cannot see (e.g. across process restarts).
package summary
