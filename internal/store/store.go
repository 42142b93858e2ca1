package store

import (
	"chatai-backend/internal/models"
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
//
// Every operation may fail with a transient store error; the store does
// not retry internally; callers decide whether to surface or retry.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateSystemMessage persists the user's system-prompt text.
	UpdateSystemMessage(ctx context.Context, userID uuid.UUID, text string) error

	// Conversation operations. Conversations are owned exclusively by
	// one user; every accessor is scoped by userID.
	CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error)
	// AppendTurnPair atomically appends one pair and refreshes the
	// conversation's last_updated stamp. Appends are additive: two
	// racing calls both land, neither overwrites the other; ordering
	// between racing pairs is store-assigned.
	AppendTurnPair(ctx context.Context, conversationID, userID uuid.UUID, pair models.TurnPair) error
	GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error)
	// ListConversations returns the user's conversations in reverse
	// chronological order by last_updated.
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error
}
