package postgres

import (
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (
    id, user_id, messages
) VALUES (
    $1, $2, '[]'::jsonb
)
RETURNING id, user_id, messages, created_at, last_updated;
`

// CreateConversation creates an empty conversation owned by userID,
// stamped with the creation time by the database.
func (s *PostgresStore) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, createConversation, uuid.New(), userID)

	var conv models.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Messages,
		&conv.CreatedAt,
		&conv.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("error scanning created conversation: %w", err)
	}

	return &conv, nil
}

const appendTurnPair = `-- name: AppendTurnPair :exec
UPDATE conversations
SET messages = messages || $1::jsonb, last_updated = NOW()
WHERE id = $2 AND user_id = $3;
`

// AppendTurnPair appends one pair to the conversation's message array
// in a single UPDATE. There is no read-modify-write: concurrent appends
// to the same conversation are both applied, in whatever order the
// database commits them. No prior pair is ever overwritten.
func (s *PostgresStore) AppendTurnPair(ctx context.Context, conversationID, userID uuid.UUID, pair models.TurnPair) error {
	pairJSON, err := json.Marshal([]models.TurnPair{pair})
	if err != nil {
		return fmt.Errorf("failed to marshal turn pair: %w", err)
	}

	tag, err := s.db.Exec(ctx, appendTurnPair, pairJSON, conversationID, userID)
	if err != nil {
		return fmt.Errorf("database error appending turn pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

const getConversation = `-- name: GetConversation :one
SELECT id, user_id, messages, created_at, last_updated
FROM conversations
WHERE id = $1 AND user_id = $2;
`

// GetConversation is the point read used when resuming from history.
func (s *PostgresStore) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRow(ctx, getConversation, conversationID, userID)

	var conv models.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Messages,
		&conv.CreatedAt,
		&conv.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning conversation: %w", err)
	}

	return &conv, nil
}

const listConversations = `-- name: ListConversations :many
SELECT id, user_id, messages, created_at, last_updated
FROM conversations
WHERE user_id = $1
ORDER BY last_updated DESC;
`

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx, listConversations, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var items []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Messages,
			&conv.CreatedAt,
			&conv.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		items = append(items, conv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	return items, nil
}

const deleteConversation = `-- name: DeleteConversation :exec
DELETE FROM conversations
WHERE id = $1 AND user_id = $2;
`

// DeleteConversation removes the conversation. Clearing session state
// when the active conversation is deleted is the caller's job.
func (s *PostgresStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteConversation, conversationID, userID)
	if err != nil {
		return fmt.Errorf("error executing delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
