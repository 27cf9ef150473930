package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientCredits is returned when a credit deduction would go negative.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrDuplicateSummary is returned when inserting a second automatic summary
	// for a conversation. Callers treat this as the signal to update in place.
	ErrDuplicateSummary = errors.New("automatic summary already exists for conversation")
)

// Store defines the persistence interface for the engine.
type Store interface {
	// Conversation operations
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	// TouchConversation updates the conversation activity timestamp.
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error

	// Message operations
	GetMessages(ctx context.Context, conversationID string) ([]*Message, error)
	// AppendMessage inserts a message with the next ordinal for the conversation,
	// assigned atomically in a single statement.
	AppendMessage(ctx context.Context, params AppendMessageParams) (*Message, error)
	// FinalizeMessage converts a placeholder into a final message in place.
	FinalizeMessage(ctx context.Context, messageID, text string) error

	// Summary operations
	// UpsertSummary inserts an automatic summary, falling back to updating the
	// existing automatic record for the conversation on a uniqueness conflict.
	UpsertSummary(ctx context.Context, params SummaryParams) (*Summary, error)
	// CreateSummary inserts a manually requested summary. Manual records are
	// not subject to the one-per-conversation constraint.
	CreateSummary(ctx context.Context, params SummaryParams) (*Summary, error)
	// LatestSummary returns the most recently updated summary for a character,
	// or nil if none exists.
	LatestSummary(ctx context.Context, characterID string) (*Summary, error)
	// SummaryBoundary returns the AI-sequence boundary of the automatic summary
	// for a conversation, or 0 if none exists.
	SummaryBoundary(ctx context.Context, conversationID string) (int, error)
	GetAutoSummary(ctx context.Context, conversationID string) (*Summary, error)
	ListSummaries(ctx context.Context, conversationID string) ([]*Summary, error)

	// Addon context operations (read-only inputs to prompt assembly)
	GetAddonSettings(ctx context.Context, userID string) (*AddonSettings, error)
	GetSituationalContext(ctx context.Context, conversationID string) (*SituationalContext, error)
	GetPersona(ctx context.Context, userID string) (*Persona, error)
	GetCharacter(ctx context.Context, characterID string) (*Character, error)
	GetWorldInfo(ctx context.Context, characterID string) ([]*WorldInfoEntry, error)
	GetMemories(ctx context.Context, userID, characterID string) ([]*Memory, error)

	// Billing operations
	GetPlan(ctx context.Context, userID string) (*Plan, error)
	// DeductCredits subtracts amount from the user's balance.
	// Returns ErrInsufficientCredits when the balance cannot cover it.
	DeductCredits(ctx context.Context, userID string, amount int) error
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message is one unit of conversation. Ordinals are strictly increasing per
// conversation. A placeholder is an AI message reserved before generation
// completes; it is finalized in place and never duplicated.
type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	Ordinal        int                 `json:"ordinal"`
	Role           Role                `json:"role"`
	Text           string              `json:"text"`
	IsPlaceholder  bool                `json:"is_placeholder"`
	Context        *SituationalContext `json:"context,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// AppendMessageParams are the inputs for AppendMessage.
type AppendMessageParams struct {
	ConversationID string
	Role           Role
	Text           string
	IsPlaceholder  bool
}

// Conversation ties a user to a character's chat history.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CharacterID  string    `json:"character_id"`
	Title        string    `json:"title"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is a compressed record of a contiguous AI-sequence range.
// At most one automatic summary exists per conversation; new automatic
// compressions update the existing record.
type Summary struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	CharacterID    string    `json:"character_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Keywords       []string  `json:"keywords"`
	Boundary       int       `json:"boundary"`
	IsAuto         bool      `json:"is_auto"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SummaryParams are the inputs for UpsertSummary and CreateSummary.
type SummaryParams struct {
	ConversationID string
	CharacterID    string
	UserID         string
	Title          string
	Body           string
	Keywords       []string
	Boundary       int
}

// SituationalContext captures the conversation's current narrative state.
// It is produced by the extraction subsystem and read-only here.
type SituationalContext struct {
	Mood         string `json:"mood,omitempty"`
	Clothing     string `json:"clothing,omitempty"`
	Location     string `json:"location,omitempty"`
	TimeWeather  string `json:"time_weather,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Position     string `json:"position,omitempty"`
}

// IsZero reports whether every field is empty.
func (c *SituationalContext) IsZero() bool {
	if c == nil {
		return true
	}
	return c.Mood == "" && c.Clothing == "" && c.Location == "" &&
		c.TimeWeather == "" && c.Relationship == "" && c.Position == ""
}

// AddonSettings are per-user feature flags controlling which context
// categories are surfaced in the prompt.
type AddonSettings struct {
	DynamicWorldInfo   bool   `json:"dynamic_world_info"`
	EnhancedMemory     bool   `json:"enhanced_memory"`
	MoodTracking       bool   `json:"mood_tracking"`
	ClothingTracking   bool   `json:"clothing_tracking"`
	LocationTracking   bool   `json:"location_tracking"`
	TimeAndWeather     bool   `json:"time_and_weather"`
	RelationshipStatus bool   `json:"relationship_status"`
	CharacterPosition  bool   `json:"character_position"`
	TimeAwareness      bool   `json:"time_awareness"`
	AutoSummary        bool   `json:"auto_summary"`
	Hints              string `json:"hints,omitempty"`
}

// Persona is the user's selected persona.
type Persona struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Character is the AI character definition the prompt is built around.
type Character struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// WorldInfoEntry is a lore entry attached to a character.
type WorldInfoEntry struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Keywords    []string  `json:"keywords"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Memory is a prior-conversation memory owned by a user/character pair.
type Memory struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CharacterID string    `json:"character_id"`
	Keywords    []string  `json:"keywords"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Plan describes a user's subscription tier: which model serves their turns
// and how many credits one turn costs.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	TurnCost int    `json:"turn_cost"`
}
