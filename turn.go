package animachat

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pipe1800/anima-chat-sub000/driver"
	"github.com/pipe1800/anima-chat-sub000/hooks"
	internalanthropic "github.com/pipe1800/anima-chat-sub000/internal/anthropic"
	"github.com/pipe1800/anima-chat-sub000/prompt"
	"github.com/pipe1800/anima-chat-sub000/storage"
	"github.com/pipe1800/anima-chat-sub000/streaming"
	"github.com/pipe1800/anima-chat-sub000/summary"
)

// TurnParams are the inputs for one chat turn.
type TurnParams struct {
	// ConversationID identifies the conversation (required).
	ConversationID string

	// Text is the user's message (required).
	Text string

	// Mode overrides the engine's default response style for this turn.
	Mode prompt.ChatMode
}

// failedResponseText is the visible message a placeholder is finalized with
// when generation fails, so it never dangles.
const failedResponseText = "Something went wrong while generating a response. Please try again."

// overloadedResponseText is shown when the provider reports overload.
const overloadedResponseText = "The character needs a moment to catch their breath. Please try again shortly."

// turnState carries everything gathered and produced across turn steps.
type turnState struct {
	conversation *storage.Conversation
	character    *storage.Character
	persona      *storage.Persona
	settings     *storage.AddonSettings
	situational  *storage.SituationalContext
	plan         *storage.Plan
	worldInfo    []*storage.WorldInfoEntry
	memories     []*storage.Memory
	history      []*storage.Message
	boundary     int

	userMessage *storage.Message
	placeholder *storage.Message

	window           window
	summaryTriggered bool
}

// RunTurn executes one chat turn and returns its event stream: zero or more
// text chunks, an optional in-stream error, then exactly one completion
// marker, after which the channel is closed.
//
// Validation and billing failures are returned synchronously with no side
// effects; retrying after fixing them persists exactly one user message and
// one AI message. Once the user message and AI placeholder are reserved, the
// turn always reaches a terminal state: any later failure finalizes the
// placeholder with a visible error message instead of leaving it dangling.
// Cancelling ctx after RunTurn returns does not stop the turn.
func (e *Engine[TTx]) RunTurn(ctx context.Context, params TurnParams) (<-chan streaming.Event, error) {
	if params.ConversationID == "" {
		return nil, NewTurnError("RunTurn", ErrMissingConversationID)
	}
	if strings.TrimSpace(params.Text) == "" {
		return nil, NewTurnError("RunTurn", ErrEmptyUserMessage).WithConversation(params.ConversationID)
	}

	if err := e.hooks.TriggerBeforeTurn(ctx, params.ConversationID, params.Text); err != nil {
		e.logger.Warn("before-turn hook failed", "error", err)
	}

	state, err := e.gather(ctx, params.ConversationID)
	if err != nil {
		return nil, NewTurnError("Gather", err).WithConversation(params.ConversationID)
	}

	if err := e.store.DeductCredits(ctx, state.conversation.UserID, state.plan.TurnCost); err != nil {
		return nil, NewTurnError("Bill", err).WithConversation(params.ConversationID)
	}

	if err := e.reserve(ctx, state, params.Text); err != nil {
		return nil, NewTurnError("Reserve", err).WithConversation(params.ConversationID)
	}

	events := make(chan streaming.Event, 256)
	go e.completeTurn(ctx, params, state, events)
	return events, nil
}

// gather fetches everything the turn needs. The conversation row comes first
// to resolve the user and character; the rest loads concurrently.
func (e *Engine[TTx]) gather(ctx context.Context, conversationID string) (*turnState, error) {
	conversation, err := e.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	state := &turnState{conversation: conversation}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state.history, err = e.store.GetMessages(gctx, conversationID)
		return err
	})
	g.Go(func() error {
		var err error
		state.character, err = e.store.GetCharacter(gctx, conversation.CharacterID)
		return err
	})
	g.Go(func() error {
		var err error
		state.settings, err = e.store.GetAddonSettings(gctx, conversation.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		state.persona, err = e.store.GetPersona(gctx, conversation.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		state.situational, err = e.store.GetSituationalContext(gctx, conversationID)
		return err
	})
	g.Go(func() error {
		var err error
		state.plan, err = e.store.GetPlan(gctx, conversation.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		state.boundary, err = e.store.SummaryBoundary(gctx, conversationID)
		return err
	})
	g.Go(func() error {
		var err error
		state.worldInfo, err = e.store.GetWorldInfo(gctx, conversation.CharacterID)
		return err
	})
	g.Go(func() error {
		var err error
		state.memories, err = e.store.GetMemories(gctx, conversation.UserID, conversation.CharacterID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

// reserve persists the user message and the AI placeholder in one
// transaction, so a later failure still leaves a consistent, completable
// placeholder.
func (e *Engine[TTx]) reserve(ctx context.Context, state *turnState, text string) error {
	tx, err := e.driver.Begin(ctx)
	if err != nil {
		return err
	}
	txCtx := driver.WithExecutor(ctx, tx)

	userMessage, err := e.store.AppendMessage(txCtx, storage.AppendMessageParams{
		ConversationID: state.conversation.ID,
		Role:           storage.RoleUser,
		Text:           text,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	placeholder, err := e.store.AppendMessage(txCtx, storage.AppendMessageParams{
		ConversationID: state.conversation.ID,
		Role:           storage.RoleAI,
		IsPlaceholder:  true,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	state.userMessage = userMessage
	state.placeholder = placeholder
	state.history = append(state.history, userMessage, placeholder)
	return nil
}

// completeTurn runs the post-reserve steps. It owns the events channel and
// always finalizes, detached from the caller's cancellation but bounded by
// the turn timeout.
func (e *Engine[TTx]) completeTurn(ctx context.Context, params TurnParams, state *turnState, events chan<- streaming.Event) {
	defer close(events)

	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.turnTimeout)
	defer cancel()

	// Plan Context.
	state.window = selectWindow(state.history, e.config.tokenBudget)
	var decision summary.Decision
	if state.settings.AutoSummary {
		decision = e.trigger.Evaluate(state.conversation.ID, state.history, state.boundary)
	}

	// Maybe Compress. A failed compression never blocks the turn.
	if decision.Triggered {
		if err := e.compress(turnCtx, state, decision); err != nil {
			e.logger.Warn("summarization failed, continuing with uncompressed window",
				"conversation_id", state.conversation.ID,
				"boundary", decision.Boundary,
				"error", err,
			)
		} else {
			state.summaryTriggered = true
			state.window = rebuildWindow(state.history, decision, e.config.tokenBudget)
		}
	}

	// Assemble & Generate.
	text, genErr := e.generate(turnCtx, params, state, events)

	e.finalize(turnCtx, state, text, genErr, events)
}

// compress runs lock-guarded summarization with bounded retry. Joiners share
// the in-flight result; after a failed attempt the lock entry is cleared so
// the retry starts fresh work.
func (e *Engine[TTx]) compress(ctx context.Context, state *turnState, decision summary.Decision) error {
	cfg := e.config.summaryConfig
	conversation := state.conversation
	characterName := ""
	if state.character != nil {
		characterName = state.character.Name
	}

	work := func() (*summary.Result, error) {
		// Summarization must not ride the turn's transaction or die with it.
		workCtx := driver.StripExecutor(context.WithoutCancel(ctx))

		if err := e.hooks.TriggerBeforeSummary(workCtx, conversation.ID, decision.Boundary); err != nil {
			e.logger.Warn("before-summary hook failed", "error", err)
		}

		result, err := e.generator.Generate(workCtx, decision.Range, characterName)
		if err != nil {
			_ = e.hooks.TriggerAfterSummary(workCtx, nil, err)
			return nil, err
		}

		record, err := e.store.UpsertSummary(workCtx, storage.SummaryParams{
			ConversationID: conversation.ID,
			CharacterID:    conversation.CharacterID,
			UserID:         conversation.UserID,
			Title:          result.Title,
			Body:           result.Prose,
			Keywords:       result.Keywords,
			Boundary:       decision.Boundary,
		})
		if err != nil {
			_ = e.hooks.TriggerAfterSummary(workCtx, nil, err)
			return nil, err
		}

		if err := e.hooks.TriggerAfterSummary(workCtx, record, nil); err != nil {
			e.logger.Warn("after-summary hook failed", "error", err)
		}
		return result, nil
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(cfg.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		handle, _ := e.locks.AcquireOrJoin(conversation.ID, work)
		if _, err := handle.Wait(ctx); err != nil {
			lastErr = err
			e.locks.Release(conversation.ID)
			continue
		}
		return nil
	}
	return lastErr
}

// rebuildWindow re-selects the window over the messages that follow the
// compressed range; the summary now stands in for everything before it.
func rebuildWindow(history []*storage.Message, decision summary.Decision, budget int) window {
	lastOrdinal := 0
	if n := len(decision.Range); n > 0 {
		lastOrdinal = decision.Range[n-1].Ordinal
	}

	var tail []*storage.Message
	for _, msg := range history {
		if msg.Ordinal > lastOrdinal {
			tail = append(tail, msg)
		}
	}
	return selectWindow(tail, budget)
}

// generate assembles the system prompt and streams the response, forwarding
// chunks to the caller as they arrive.
func (e *Engine[TTx]) generate(ctx context.Context, params TurnParams, state *turnState, events chan<- streaming.Event) (string, error) {
	recentText := combineText(state.window.Messages)

	var latest *storage.Summary
	if state.settings.AutoSummary {
		var err error
		latest, err = e.store.LatestSummary(ctx, state.conversation.CharacterID)
		if err != nil {
			e.logger.Warn("latest summary lookup failed", "error", err)
		}
	}

	mode := params.Mode
	if mode == "" {
		mode = e.config.mode
	}

	system := prompt.Build(prompt.Input{
		Character:   state.character,
		Persona:     state.persona,
		Settings:    state.settings,
		Context:     state.situational,
		Mode:        mode,
		SinceLastAI: sinceLastAI(state.history, time.Now()),
		WorldInfo:   prompt.FilterWorldInfo(state.worldInfo, recentText),
		Memories:    prompt.FilterMemories(state.memories, recentText),
		Summary:     latest,
	})

	model := e.config.model
	if state.plan != nil && state.plan.Model != "" {
		model = state.plan.Model
	}

	return e.responder.StreamResponse(ctx, ResponseRequest{
		Model:     model,
		System:    system,
		Messages:  state.window.Messages,
		MaxTokens: e.config.maxResponseTokens,
	}, func(delta string) {
		emit(events, streaming.Chunk(delta))
	})
}

// finalize converts the placeholder into the final message, updates activity
// timestamps, dispatches context extraction, and emits the completion marker.
// It runs for failed generations too; the user always gets some response.
func (e *Engine[TTx]) finalize(ctx context.Context, state *turnState, text string, genErr error, events chan<- streaming.Event) {
	finalText := text
	if genErr != nil {
		e.logger.Error("response generation failed",
			"conversation_id", state.conversation.ID,
			"error", genErr,
		)
		visible := failedResponseText
		if internalanthropic.IsOverloadedError(genErr) {
			visible = overloadedResponseText
		}
		emit(events, streaming.Error(visible))
		if strings.TrimSpace(finalText) == "" {
			finalText = visible
		}
	}

	if err := e.store.FinalizeMessage(ctx, state.placeholder.ID, finalText); err != nil {
		// One statement-level retry; the turn itself is not retried.
		e.logger.Error("finalize failed, retrying once", "message_id", state.placeholder.ID, "error", err)
		if err := e.store.FinalizeMessage(ctx, state.placeholder.ID, finalText); err != nil {
			e.logger.Error("finalize retry failed", "message_id", state.placeholder.ID, "error", err)
		}
	}

	if err := e.store.TouchConversation(ctx, state.conversation.ID, time.Now()); err != nil {
		e.logger.Warn("activity timestamp update failed", "error", err)
	}

	e.dispatchExtraction(ctx, state.conversation.ID, state.placeholder.ID)

	info := &hooks.TurnInfo{
		ConversationID:        state.conversation.ID,
		UserID:                state.conversation.UserID,
		MessageID:             state.placeholder.ID,
		ContextCeilingReached: state.window.ceilingReached(),
		AutoSummaryTriggered:  state.summaryTriggered,
		Err:                   genErr,
	}
	if err := e.hooks.TriggerAfterTurn(ctx, info); err != nil {
		e.logger.Warn("after-turn hook failed", "error", err)
	}

	emit(events, streaming.Completed(streaming.Completion{
		MessageID:             state.placeholder.ID,
		Text:                  finalText,
		ContextCeilingReached: state.window.ceilingReached(),
		AutoSummaryTriggered:  state.summaryTriggered,
	}))
}

// emit delivers an event without ever blocking the turn. A caller that
// stopped reading loses events; the turn still finalizes and persists.
func emit(events chan<- streaming.Event, event streaming.Event) {
	select {
	case events <- event:
	default:
	}
}

// combineText joins message texts for the relevance filters.
func combineText(messages []*storage.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.IsPlaceholder {
			continue
		}
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// sinceLastAI returns the elapsed time since the character's last real
// message, or 0 when there is none.
func sinceLastAI(history []*storage.Message, now time.Time) time.Duration {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != storage.RoleAI || msg.IsPlaceholder || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		return now.Sub(msg.CreatedAt)
	}
	return 0
}
