// Package testutil provides in-memory fakes for tests: a full storage.Store
// and a scripted model completer.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

// MemoryStore is an in-memory storage.Store. It enforces the same invariants
// as the SQL stores: gapless per-conversation ordinals and at most one
// automatic summary per conversation.
type MemoryStore struct {
	mu sync.Mutex

	Conversations map[string]*storage.Conversation
	Messages      map[string][]*storage.Message // keyed by conversation ID
	Summaries     map[string]*storage.Summary   // keyed by summary ID
	Settings      map[string]*storage.AddonSettings
	Contexts      map[string]*storage.SituationalContext
	Personas      map[string]*storage.Persona
	Characters    map[string]*storage.Character
	WorldInfo     map[string][]*storage.WorldInfoEntry
	Memories      map[string][]*storage.Memory // keyed by userID+"/"+characterID
	Plans         map[string]*storage.Plan     // keyed by user ID
	Credits       map[string]int               // keyed by user ID

	// FailFinalize, when set, makes FinalizeMessage return this error once.
	FailFinalize error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Conversations: make(map[string]*storage.Conversation),
		Messages:      make(map[string][]*storage.Message),
		Summaries:     make(map[string]*storage.Summary),
		Settings:      make(map[string]*storage.AddonSettings),
		Contexts:      make(map[string]*storage.SituationalContext),
		Personas:      make(map[string]*storage.Persona),
		Characters:    make(map[string]*storage.Character),
		WorldInfo:     make(map[string][]*storage.WorldInfoEntry),
		Memories:      make(map[string][]*storage.Memory),
		Plans:         make(map[string]*storage.Plan),
		Credits:       make(map[string]int),
	}
}

// SeedConversation wires up a conversation with its character, user plan, and
// credits in one call.
func (s *MemoryStore) SeedConversation(conversationID, userID, characterID, characterName string, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Conversations[conversationID] = &storage.Conversation{
		ID:          conversationID,
		UserID:      userID,
		CharacterID: characterID,
	}
	s.Characters[characterID] = &storage.Character{
		ID:         characterID,
		Name:       characterName,
		Definition: characterName + " is a character.",
	}
	s.Plans[userID] = &storage.Plan{ID: "plan-1", Name: "standard", Model: "test-model", TurnCost: 1}
	s.Credits[userID] = credits
}

func (s *MemoryStore) GetConversation(ctx context.Context, conversationID string) (*storage.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.Conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", storage.ErrNotFound, conversationID)
	}
	c := *conv
	return &c, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]*storage.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storage.Conversation
	for _, conv := range s.Conversations {
		if conv.UserID == userID {
			c := *conv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

func (s *MemoryStore) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.Conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", storage.ErrNotFound, conversationID)
	}
	conv.LastActiveAt = at
	conv.UpdatedAt = at
	return nil
}

func (s *MemoryStore) GetMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.Messages[conversationID]
	out := make([]*storage.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, params storage.AppendMessageParams) (*storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	msg := &storage.Message{
		ID:             uuid.New().String(),
		ConversationID: params.ConversationID,
		Ordinal:        len(s.Messages[params.ConversationID]) + 1,
		Role:           params.Role,
		Text:           params.Text,
		IsPlaceholder:  params.IsPlaceholder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Messages[params.ConversationID] = append(s.Messages[params.ConversationID], msg)

	c := *msg
	return &c, nil
}

func (s *MemoryStore) FinalizeMessage(ctx context.Context, messageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailFinalize != nil {
		err := s.FailFinalize
		s.FailFinalize = nil
		return err
	}

	for _, msgs := range s.Messages {
		for _, msg := range msgs {
			if msg.ID == messageID {
				msg.Text = text
				msg.IsPlaceholder = false
				msg.UpdatedAt = time.Now()
				return nil
			}
		}
	}
	return fmt.Errorf("%w: message %s", storage.ErrNotFound, messageID)
}

func (s *MemoryStore) UpsertSummary(ctx context.Context, params storage.SummaryParams) (*storage.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.Summaries {
		if existing.ConversationID == params.ConversationID && existing.IsAuto {
			existing.Title = params.Title
			existing.Body = params.Body
			existing.Keywords = params.Keywords
			existing.Boundary = params.Boundary
			existing.UpdatedAt = time.Now()
			c := *existing
			return &c, nil
		}
	}
	return s.insertSummaryLocked(params, true), nil
}

func (s *MemoryStore) CreateSummary(ctx context.Context, params storage.SummaryParams) (*storage.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSummaryLocked(params, false), nil
}

func (s *MemoryStore) insertSummaryLocked(params storage.SummaryParams, isAuto bool) *storage.Summary {
	now := time.Now()
	summary := &storage.Summary{
		ID:             uuid.New().String(),
		ConversationID: params.ConversationID,
		CharacterID:    params.CharacterID,
		UserID:         params.UserID,
		Title:          params.Title,
		Body:           params.Body,
		Keywords:       params.Keywords,
		Boundary:       params.Boundary,
		IsAuto:         isAuto,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Summaries[summary.ID] = summary
	c := *summary
	return &c
}

func (s *MemoryStore) LatestSummary(ctx context.Context, characterID string) (*storage.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *storage.Summary
	for _, summary := range s.Summaries {
		if summary.CharacterID != characterID {
			continue
		}
		if latest == nil || summary.UpdatedAt.After(latest.UpdatedAt) {
			latest = summary
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (s *MemoryStore) SummaryBoundary(ctx context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, summary := range s.Summaries {
		if summary.ConversationID == conversationID && summary.IsAuto {
			return summary.Boundary, nil
		}
	}
	return 0, nil
}

func (s *MemoryStore) GetAutoSummary(ctx context.Context, conversationID string) (*storage.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, summary := range s.Summaries {
		if summary.ConversationID == conversationID && summary.IsAuto {
			c := *summary
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: automatic summary for conversation %s", storage.ErrNotFound, conversationID)
}

func (s *MemoryStore) ListSummaries(ctx context.Context, conversationID string) ([]*storage.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storage.Summary
	for _, summary := range s.Summaries {
		if summary.ConversationID == conversationID {
			c := *summary
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetAddonSettings(ctx context.Context, userID string) (*storage.AddonSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings, ok := s.Settings[userID]; ok {
		c := *settings
		return &c, nil
	}
	return &storage.AddonSettings{}, nil
}

func (s *MemoryStore) GetSituationalContext(ctx context.Context, conversationID string) (*storage.SituationalContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.Contexts[conversationID]; ok {
		c := *sc
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetPersona(ctx context.Context, userID string) (*storage.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if persona, ok := s.Personas[userID]; ok {
		c := *persona
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetCharacter(ctx context.Context, characterID string) (*storage.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	character, ok := s.Characters[characterID]
	if !ok {
		return nil, fmt.Errorf("%w: character %s", storage.ErrNotFound, characterID)
	}
	c := *character
	return &c, nil
}

func (s *MemoryStore) GetWorldInfo(ctx context.Context, characterID string) ([]*storage.WorldInfoEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*storage.WorldInfoEntry(nil), s.WorldInfo[characterID]...), nil
}

func (s *MemoryStore) GetMemories(ctx context.Context, userID, characterID string) ([]*storage.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*storage.Memory(nil), s.Memories[userID+"/"+characterID]...), nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, userID string) (*storage.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.Plans[userID]
	if !ok {
		return nil, fmt.Errorf("%w: plan for user %s", storage.ErrNotFound, userID)
	}
	c := *plan
	return &c, nil
}

func (s *MemoryStore) DeductCredits(ctx context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Credits[userID] < amount {
		return fmt.Errorf("%w: user %s needs %d credits", storage.ErrInsufficientCredits, userID, amount)
	}
	s.Credits[userID] -= amount
	return nil
}

// MessageCount returns how many messages a conversation holds.
func (s *MemoryStore) MessageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages[conversationID])
}

// AutoSummaryCount returns how many automatic summaries exist for a
// conversation. The invariant under test is that this never exceeds one.
func (s *MemoryStore) AutoSummaryCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, summary := range s.Summaries {
		if summary.ConversationID == conversationID && summary.IsAuto {
			count++
		}
	}
	return count
}

// SeedHistory appends alternating user/AI message pairs.
func (s *MemoryStore) SeedHistory(conversationID string, pairs int) {
	for i := 1; i <= pairs; i++ {
		_, _ = s.AppendMessage(context.Background(), storage.AppendMessageParams{
			ConversationID: conversationID,
			Role:           storage.RoleUser,
			Text:           fmt.Sprintf("user message %d", i),
		})
		_, _ = s.AppendMessage(context.Background(), storage.AppendMessageParams{
			ConversationID: conversationID,
			Role:           storage.RoleAI,
			Text:           fmt.Sprintf("ai message %d", i),
		})
	}
}
