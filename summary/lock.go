package summary

import (
	"context"
	"sync"
	"time"
)

// Handle is the shared handle for one in-flight summarization. All callers
// that acquire or join the same conversation's lock receive the same handle
// and converge on one result.
type Handle struct {
	done   chan struct{}
	result *Result
	err    error
}

// Wait blocks until the operation completes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the operation completes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// LockManager provides process-wide, per-conversation mutual exclusion for
// summarization work. It never persists anything; a process restart loses all
// locks, which at worst causes one redundant compression that the store's
// uniqueness constraint absorbs.
type LockManager struct {
	mu       sync.Mutex
	grace    time.Duration
	inflight map[string]*Handle
}

// NewLockManager creates a lock manager. A non-positive grace falls back to
// DefaultLockGrace.
func NewLockManager(grace time.Duration) *LockManager {
	if grace <= 0 {
		grace = DefaultLockGrace
	}
	return &LockManager{
		grace:    grace,
		inflight: make(map[string]*Handle),
	}
}

// AcquireOrJoin returns the handle for the conversation's in-flight
// summarization, starting work in a new goroutine if none is running. The
// second return value reports whether the caller joined an existing
// operation instead of starting one.
//
// The lock entry is removed a grace period after completion, success or
// failure, so a trailing duplicate request inside that window still joins
// the finished operation rather than restarting it. Retry policy lives with
// the caller: after a failed handle clears, a fresh AcquireOrJoin starts new
// work.
func (m *LockManager) AcquireOrJoin(conversationID string, work func() (*Result, error)) (*Handle, bool) {
	m.mu.Lock()
	if h, ok := m.inflight[conversationID]; ok {
		m.mu.Unlock()
		return h, true
	}

	h := &Handle{done: make(chan struct{})}
	m.inflight[conversationID] = h
	m.mu.Unlock()

	go func() {
		h.result, h.err = work()
		close(h.done)

		time.AfterFunc(m.grace, func() {
			m.mu.Lock()
			if m.inflight[conversationID] == h {
				delete(m.inflight, conversationID)
			}
			m.mu.Unlock()
		})
	}()

	return h, false
}

// Held reports whether a lock entry exists for the conversation, including
// completed entries still inside their grace window.
func (m *LockManager) Held(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[conversationID]
	return ok
}

// Release removes the lock entry immediately, bypassing the grace delay.
// Intended for tests and for callers that must force a fresh acquisition.
func (m *LockManager) Release(conversationID string) {
	m.mu.Lock()
	delete(m.inflight, conversationID)
	m.mu.Unlock()
}
