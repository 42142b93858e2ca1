package store

import (
	"chatai-backend/internal/models"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore satisfies Store with canned results; only the conversation
// mutations matter for the decorator tests.
type stubStore struct {
	failAppend bool
}

func (s *stubStore) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (s *stubStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, ErrNotFound
}
func (s *stubStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, ErrNotFound
}
func (s *stubStore) UpdateSystemMessage(ctx context.Context, userID uuid.UUID, text string) error {
	return nil
}
func (s *stubStore) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	return &models.Conversation{ID: uuid.New(), UserID: userID}, nil
}
func (s *stubStore) AppendTurnPair(ctx context.Context, conversationID, userID uuid.UUID, pair models.TurnPair) error {
	if s.failAppend {
		return errors.New("write failed")
	}
	return nil
}
func (s *stubStore) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	return nil, ErrNotFound
}
func (s *stubStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return nil, nil
}
func (s *stubStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	return nil
}

func TestNotifyingStorePublishesOnMutations(t *testing.T) {
	hub := NewHub()
	ns := NewNotifyingStore(&stubStore{}, hub)
	userID := uuid.New()

	ch, cancel := hub.Subscribe(userID)
	defer cancel()

	conv, err := ns.CreateConversation(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, signalled(ch))

	err = ns.AppendTurnPair(context.Background(), conv.ID, userID, models.TurnPair{UserMessage: "q", AIResponse: "a"})
	require.NoError(t, err)
	assert.True(t, signalled(ch))

	err = ns.DeleteConversation(context.Background(), conv.ID, userID)
	require.NoError(t, err)
	assert.True(t, signalled(ch))
}

func TestNotifyingStoreSkipsPublishOnFailure(t *testing.T) {
	hub := NewHub()
	ns := NewNotifyingStore(&stubStore{failAppend: true}, hub)
	userID := uuid.New()

	ch, cancel := hub.Subscribe(userID)
	defer cancel()

	err := ns.AppendTurnPair(context.Background(), uuid.New(), userID, models.TurnPair{})
	require.Error(t, err)
	assert.False(t, signalled(ch), "failed writes must not signal subscribers")
}
