package pgxv5

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pipe1800/anima-chat-sub000/driver"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

// Store implements storage.Store using the pgxv5 driver.
type Store struct {
	driver *Driver
}

// NewStore creates a new pgxv5 Store.
func NewStore(d *Driver) *Store {
	return &Store{driver: d}
}

// getExecutor returns the executor from context if present, otherwise the default pool executor.
func (s *Store) getExecutor(ctx context.Context) driver.Executor {
	if exec := driver.ExecutorFromContext(ctx); exec != nil {
		return exec
	}
	return s.driver.GetExecutor()
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*storage.Conversation, error) {
	query := `
		SELECT id, user_id, character_id, title, last_active_at, created_at, updated_at
		FROM anima_conversations
		WHERE id = $1
	`

	var conv storage.Conversation
	err := s.getExecutor(ctx).QueryRow(ctx, query, conversationID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.CharacterID,
		&conv.Title,
		&conv.LastActiveAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %s", storage.ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations retrieves all conversations for a user, most recent first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*storage.Conversation, error) {
	query := `
		SELECT id, user_id, character_id, title, last_active_at, created_at, updated_at
		FROM anima_conversations
		WHERE user_id = $1
		ORDER BY last_active_at DESC
	`

	rows, err := s.getExecutor(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*storage.Conversation
	for rows.Next() {
		var conv storage.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.CharacterID,
			&conv.Title,
			&conv.LastActiveAt,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &conv)
	}

	return convs, rows.Err()
}

// TouchConversation updates the conversation activity timestamp.
func (s *Store) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	query := `
		UPDATE anima_conversations
		SET last_active_at = $2, updated_at = NOW()
		WHERE id = $1
	`

	affected, err := s.getExecutor(ctx).Exec(ctx, query, conversationID, at)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: conversation %s", storage.ErrNotFound, conversationID)
	}

	return nil
}

// GetMessages retrieves all messages for a conversation in ordinal order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	query := `
		SELECT id, conversation_id, ordinal, role, text, is_placeholder, context, created_at, updated_at
		FROM anima_messages
		WHERE conversation_id = $1
		ORDER BY ordinal ASC
	`

	rows, err := s.getExecutor(ctx).Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*storage.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// AppendMessage inserts a message with the next ordinal for the conversation.
// The ordinal is assigned in the same statement to avoid a read-then-insert race.
func (s *Store) AppendMessage(ctx context.Context, params storage.AppendMessageParams) (*storage.Message, error) {
	if params.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}

	msg := &storage.Message{
		ID:             uuid.New().String(),
		ConversationID: params.ConversationID,
		Role:           params.Role,
		Text:           params.Text,
		IsPlaceholder:  params.IsPlaceholder,
	}

	query := `
		INSERT INTO anima_messages (id, conversation_id, ordinal, role, text, is_placeholder, created_at, updated_at)
		SELECT $1, $2, COALESCE(MAX(ordinal), 0) + 1, $3, $4, $5, NOW(), NOW()
		FROM anima_messages
		WHERE conversation_id = $2
		RETURNING ordinal, created_at, updated_at
	`

	err := s.getExecutor(ctx).QueryRow(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Text, msg.IsPlaceholder,
	).Scan(&msg.Ordinal, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return msg, nil
}

// FinalizeMessage converts a placeholder into a final message in place.
func (s *Store) FinalizeMessage(ctx context.Context, messageID, text string) error {
	query := `
		UPDATE anima_messages
		SET text = $2, is_placeholder = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	affected, err := s.getExecutor(ctx).Exec(ctx, query, messageID, text)
	if err != nil {
		return fmt.Errorf("failed to finalize message: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: message %s", storage.ErrNotFound, messageID)
	}

	return nil
}

// UpsertSummary inserts an automatic summary. On a uniqueness conflict
// (a second automatic summary for the same conversation) it falls back to
// updating the existing record in place. This is the named branch that keeps
// the one-automatic-summary-per-conversation invariant under writers the lock
// manager cannot see, such as a second process.
func (s *Store) UpsertSummary(ctx context.Context, params storage.SummaryParams) (*storage.Summary, error) {
	summary, err := s.insertSummary(ctx, params, true)
	if err == nil {
		return summary, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}

	existing, err := s.GetAutoSummary(ctx, params.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("conflict fallback fetch failed: %w", err)
	}
	return s.updateSummary(ctx, existing.ID, params)
}

// CreateSummary inserts a manually requested summary.
func (s *Store) CreateSummary(ctx context.Context, params storage.SummaryParams) (*storage.Summary, error) {
	return s.insertSummary(ctx, params, false)
}

func (s *Store) insertSummary(ctx context.Context, params storage.SummaryParams, isAuto bool) (*storage.Summary, error) {
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
	}

	keywordsJSON, err := json.Marshal(summary.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO anima_summaries (id, conversation_id, character_id, user_id, title, body, keywords, boundary, is_auto, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err = s.getExecutor(ctx).QueryRow(ctx, query,
		summary.ID, summary.ConversationID, summary.CharacterID, summary.UserID,
		summary.Title, summary.Body, keywordsJSON, summary.Boundary, summary.IsAuto,
	).Scan(&summary.CreatedAt, &summary.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", storage.ErrDuplicateSummary, err)
		}
		return nil, fmt.Errorf("failed to insert summary: %w", err)
	}

	return summary, nil
}

func (s *Store) updateSummary(ctx context.Context, summaryID string, params storage.SummaryParams) (*storage.Summary, error) {
	keywordsJSON, err := json.Marshal(params.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		UPDATE anima_summaries
		SET title = $2, body = $3, keywords = $4, boundary = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING conversation_id, character_id, user_id, is_auto, created_at, updated_at
	`

	summary := &storage.Summary{
		ID:       summaryID,
		Title:    params.Title,
		Body:     params.Body,
		Keywords: params.Keywords,
		Boundary: params.Boundary,
	}

	err = s.getExecutor(ctx).QueryRow(ctx, query,
		summaryID, params.Title, params.Body, keywordsJSON, params.Boundary,
	).Scan(
		&summary.ConversationID,
		&summary.CharacterID,
		&summary.UserID,
		&summary.IsAuto,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: summary %s", storage.ErrNotFound, summaryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update summary: %w", err)
	}

	return summary, nil
}

// LatestSummary returns the most recently updated summary for a character,
// or nil if none exists.
func (s *Store) LatestSummary(ctx context.Context, characterID string) (*storage.Summary, error) {
	query := `
		SELECT id, conversation_id, character_id, user_id, title, body, keywords, boundary, is_auto, created_at, updated_at
		FROM anima_summaries
		WHERE character_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`

	summary, err := scanSummaryRow(s.getExecutor(ctx).QueryRow(ctx, query, characterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return summary, err
}

// SummaryBoundary returns the boundary of the automatic summary for a
// conversation, or 0 if none exists.
func (s *Store) SummaryBoundary(ctx context.Context, conversationID string) (int, error) {
	query := `
		SELECT boundary
		FROM anima_summaries
		WHERE conversation_id = $1 AND is_auto = TRUE
	`

	var boundary int
	err := s.getExecutor(ctx).QueryRow(ctx, query, conversationID).Scan(&boundary)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get summary boundary: %w", err)
	}

	return boundary, nil
}

// GetAutoSummary retrieves the automatic summary for a conversation.
func (s *Store) GetAutoSummary(ctx context.Context, conversationID string) (*storage.Summary, error) {
	query := `
		SELECT id, conversation_id, character_id, user_id, title, body, keywords, boundary, is_auto, created_at, updated_at
		FROM anima_summaries
		WHERE conversation_id = $1 AND is_auto = TRUE
	`

	summary, err := scanSummaryRow(s.getExecutor(ctx).QueryRow(ctx, query, conversationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: automatic summary for conversation %s", storage.ErrNotFound, conversationID)
	}
	return summary, err
}

// ListSummaries retrieves all summaries for a conversation, newest first.
func (s *Store) ListSummaries(ctx context.Context, conversationID string) ([]*storage.Summary, error) {
	query := `
		SELECT id, conversation_id, character_id, user_id, title, body, keywords, boundary, is_auto, created_at, updated_at
		FROM anima_summaries
		WHERE conversation_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := s.getExecutor(ctx).Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*storage.Summary
	for rows.Next() {
		summary, err := scanSummaryRow(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// GetAddonSettings retrieves a user's addon flags.
// Users without a settings row get the zero value (all addons off).
func (s *Store) GetAddonSettings(ctx context.Context, userID string) (*storage.AddonSettings, error) {
	query := `
		SELECT dynamic_world_info, enhanced_memory, mood_tracking, clothing_tracking,
		       location_tracking, time_and_weather, relationship_status,
		       character_position, time_awareness, auto_summary, hints
		FROM anima_addon_settings
		WHERE user_id = $1
	`

	var settings storage.AddonSettings
	err := s.getExecutor(ctx).QueryRow(ctx, query, userID).Scan(
		&settings.DynamicWorldInfo,
		&settings.EnhancedMemory,
		&settings.MoodTracking,
		&settings.ClothingTracking,
		&settings.LocationTracking,
		&settings.TimeAndWeather,
		&settings.RelationshipStatus,
		&settings.CharacterPosition,
		&settings.TimeAwareness,
		&settings.AutoSummary,
		&settings.Hints,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &storage.AddonSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get addon settings: %w", err)
	}

	return &settings, nil
}

// GetSituationalContext retrieves the current narrative state for a
// conversation, or nil if none has been extracted yet.
func (s *Store) GetSituationalContext(ctx context.Context, conversationID string) (*storage.SituationalContext, error) {
	query := `
		SELECT mood, clothing, location, time_weather, relationship, position
		FROM anima_context
		WHERE conversation_id = $1
	`

	var sc storage.SituationalContext
	err := s.getExecutor(ctx).QueryRow(ctx, query, conversationID).Scan(
		&sc.Mood,
		&sc.Clothing,
		&sc.Location,
		&sc.TimeWeather,
		&sc.Relationship,
		&sc.Position,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get situational context: %w", err)
	}

	return &sc, nil
}

// GetPersona retrieves the user's selected persona, or nil if none is selected.
func (s *Store) GetPersona(ctx context.Context, userID string) (*storage.Persona, error) {
	query := `
		SELECT id, user_id, name, description
		FROM anima_personas
		WHERE user_id = $1 AND is_selected = TRUE
	`

	var persona storage.Persona
	err := s.getExecutor(ctx).QueryRow(ctx, query, userID).Scan(
		&persona.ID,
		&persona.UserID,
		&persona.Name,
		&persona.Description,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}

	return &persona, nil
}

// GetCharacter retrieves a character definition.
func (s *Store) GetCharacter(ctx context.Context, characterID string) (*storage.Character, error) {
	query := `
		SELECT id, name, definition
		FROM anima_characters
		WHERE id = $1
	`

	var character storage.Character
	err := s.getExecutor(ctx).QueryRow(ctx, query, characterID).Scan(
		&character.ID,
		&character.Name,
		&character.Definition,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: character %s", storage.ErrNotFound, characterID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}

	return &character, nil
}

// GetWorldInfo retrieves all world-info entries for a character.
func (s *Store) GetWorldInfo(ctx context.Context, characterID string) ([]*storage.WorldInfoEntry, error) {
	query := `
		SELECT id, character_id, keywords, text, created_at
		FROM anima_world_info
		WHERE character_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.getExecutor(ctx).Query(ctx, query, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query world info: %w", err)
	}
	defer rows.Close()

	var entries []*storage.WorldInfoEntry
	for rows.Next() {
		var entry storage.WorldInfoEntry
		var keywordsJSON []byte
		if err := rows.Scan(&entry.ID, &entry.CharacterID, &keywordsJSON, &entry.Text, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan world info entry: %w", err)
		}
		if err := json.Unmarshal(keywordsJSON, &entry.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// GetMemories retrieves memories for a user/character pair, newest first.
func (s *Store) GetMemories(ctx context.Context, userID, characterID string) ([]*storage.Memory, error) {
	query := `
		SELECT id, user_id, character_id, keywords, text, created_at
		FROM anima_memories
		WHERE user_id = $1 AND character_id = $2
		ORDER BY created_at DESC
	`

	rows, err := s.getExecutor(ctx).Query(ctx, query, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var memories []*storage.Memory
	for rows.Next() {
		var memory storage.Memory
		var keywordsJSON []byte
		if err := rows.Scan(&memory.ID, &memory.UserID, &memory.CharacterID, &keywordsJSON, &memory.Text, &memory.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		if err := json.Unmarshal(keywordsJSON, &memory.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
		memories = append(memories, &memory)
	}

	return memories, rows.Err()
}

// GetPlan retrieves the user's subscription plan.
func (s *Store) GetPlan(ctx context.Context, userID string) (*storage.Plan, error) {
	query := `
		SELECT p.id, p.name, p.model, p.turn_cost
		FROM anima_plans p
		JOIN anima_credits c ON c.plan_id = p.id
		WHERE c.user_id = $1
	`

	var plan storage.Plan
	err := s.getExecutor(ctx).QueryRow(ctx, query, userID).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Model,
		&plan.TurnCost,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan for user %s", storage.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

// DeductCredits subtracts amount from the user's balance. The balance check
// and the subtraction happen in one statement so concurrent turns cannot
// overdraw.
func (s *Store) DeductCredits(ctx context.Context, userID string, amount int) error {
	query := `
		UPDATE anima_credits
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
	`

	affected, err := s.getExecutor(ctx).Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to deduct credits: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s needs %d credits", storage.ErrInsufficientCredits, userID, amount)
	}

	return nil
}

// scanMessage scans a message row, decoding the optional context snapshot.
func scanMessage(row driver.Row) (*storage.Message, error) {
	var msg storage.Message
	var contextJSON []byte

	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.Ordinal,
		&msg.Role,
		&msg.Text,
		&msg.IsPlaceholder,
		&contextJSON,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	if len(contextJSON) > 0 {
		var sc storage.SituationalContext
		if err := json.Unmarshal(contextJSON, &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message context: %w", err)
		}
		msg.Context = &sc
	}

	return &msg, nil
}

// scanSummaryRow scans a summary row, decoding the keywords array.
func scanSummaryRow(row driver.Row) (*storage.Summary, error) {
	var summary storage.Summary
	var keywordsJSON []byte

	err := row.Scan(
		&summary.ID,
		&summary.ConversationID,
		&summary.CharacterID,
		&summary.UserID,
		&summary.Title,
		&summary.Body,
		&keywordsJSON,
		&summary.Boundary,
		&summary.IsAuto,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keywordsJSON, &summary.Keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
	}

	return &summary, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, storage.ErrDuplicateSummary)
}
