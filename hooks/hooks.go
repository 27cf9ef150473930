// Package hooks provides observation points around turn execution and
// summarization. Hooks are advisory: the engine logs hook errors but never
// lets them fail a turn.
package hooks

import (
	"context"
	"sync"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// TurnInfo describes a completed turn.
type TurnInfo struct {
	ConversationID        string
	UserID                string
	MessageID             string
	ContextCeilingReached bool
	AutoSummaryTriggered  bool

	// Err is the turn's terminal error, nil on success.
	Err error
}

// BeforeTurnHook is called before a turn starts executing.
type BeforeTurnHook func(ctx context.Context, conversationID, userText string) error

// AfterTurnHook is called after a turn reaches a terminal state.
type AfterTurnHook func(ctx context.Context, info *TurnInfo) error

// BeforeSummaryHook is called before a summarization runs.
type BeforeSummaryHook func(ctx context.Context, conversationID string, boundary int) error

// AfterSummaryHook is called after a summarization completes. record is nil
// when err is non-nil.
type AfterSummaryHook func(ctx context.Context, record *storage.Summary, err error) error

// ExtractionDispatchedHook is called when the post-turn situational-context
// extraction is dispatched. It fires exactly once per finalized turn.
type ExtractionDispatchedHook func(ctx context.Context, conversationID, messageID string) error

// Registry holds all registered hooks.
type Registry struct {
	mu                   sync.RWMutex
	beforeTurn           []BeforeTurnHook
	afterTurn            []AfterTurnHook
	beforeSummary        []BeforeSummaryHook
	afterSummary         []AfterSummaryHook
	extractionDispatched []ExtractionDispatchedHook
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforeTurn registers a hook to be called before a turn starts.
func (r *Registry) OnBeforeTurn(hook BeforeTurnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeTurn = append(r.beforeTurn, hook)
}

// OnAfterTurn registers a hook to be called after a turn completes.
func (r *Registry) OnAfterTurn(hook AfterTurnHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterTurn = append(r.afterTurn, hook)
}

// OnBeforeSummary registers a hook to be called before summarization.
func (r *Registry) OnBeforeSummary(hook BeforeSummaryHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeSummary = append(r.beforeSummary, hook)
}

// OnAfterSummary registers a hook to be called after summarization.
func (r *Registry) OnAfterSummary(hook AfterSummaryHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterSummary = append(r.afterSummary, hook)
}

// OnExtractionDispatched registers a hook to be called when context
// extraction is dispatched.
func (r *Registry) OnExtractionDispatched(hook ExtractionDispatchedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractionDispatched = append(r.extractionDispatched, hook)
}

// TriggerBeforeTurn calls all registered before-turn hooks.
func (r *Registry) TriggerBeforeTurn(ctx context.Context, conversationID, userText string) error {
	r.mu.RLock()
	hooks := make([]BeforeTurnHook, len(r.beforeTurn))
	copy(hooks, r.beforeTurn)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, conversationID, userText); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterTurn calls all registered after-turn hooks.
func (r *Registry) TriggerAfterTurn(ctx context.Context, info *TurnInfo) error {
	r.mu.RLock()
	hooks := make([]AfterTurnHook, len(r.afterTurn))
	copy(hooks, r.afterTurn)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeSummary calls all registered before-summary hooks.
func (r *Registry) TriggerBeforeSummary(ctx context.Context, conversationID string, boundary int) error {
	r.mu.RLock()
	hooks := make([]BeforeSummaryHook, len(r.beforeSummary))
	copy(hooks, r.beforeSummary)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, conversationID, boundary); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterSummary calls all registered after-summary hooks.
func (r *Registry) TriggerAfterSummary(ctx context.Context, record *storage.Summary, err error) error {
	r.mu.RLock()
	hooks := make([]AfterSummaryHook, len(r.afterSummary))
	copy(hooks, r.afterSummary)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if hookErr := hook(ctx, record, err); hookErr != nil {
			return hookErr
		}
	}
	return nil
}

// TriggerExtractionDispatched calls all registered extraction-dispatched hooks.
func (r *Registry) TriggerExtractionDispatched(ctx context.Context, conversationID, messageID string) error {
	r.mu.RLock()
	hooks := make([]ExtractionDispatchedHook, len(r.extractionDispatched))
	copy(hooks, r.extractionDispatched)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, conversationID, messageID); err != nil {
			return err
		}
	}
	return nil
}
