package services

import (
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConversationService presents the stored conversation list and
// coordinates deletion with the active session.
type ConversationService struct {
	store    store.Store
	hub      *store.Hub
	sessions *SessionService
}

// NewConversationService creates a new ConversationService.
func NewConversationService(s store.Store, hub *store.Hub, sessions *SessionService) *ConversationService {
	return &ConversationService{
		store:    s,
		hub:      hub,
		sessions: sessions,
	}
}

// List returns the user's conversation summaries, most recently
// updated first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		summary, err := summarize(&convs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to summarize conversation %s: %w", convs[i].ID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Get returns one full stored conversation.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.ConversationResponse, error) {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	pairs, err := conv.Pairs()
	if err != nil {
		return nil, fmt.Errorf("failed to parse conversation messages: %w", err)
	}
	return &models.ConversationResponse{
		ID:          conv.ID,
		Messages:    pairs,
		CreatedAt:   conv.CreatedAt,
		LastUpdated: conv.LastUpdated,
	}, nil
}

// Delete removes the conversation. If it is the session's active
// conversation the session is cleared back to its greeting state;
// deleting any other conversation leaves the session untouched.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.store.DeleteConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	s.sessions.ClearConversation(userID, conversationID)
	return nil
}

// Subscribe yields a change-signal channel for the user's conversation
// list. The cancel func must be called when the consumer goes away and
// is safe to call more than once.
func (s *ConversationService) Subscribe(userID uuid.UUID) (<-chan struct{}, func()) {
	return s.hub.Subscribe(userID)
}

func summarize(conv *models.Conversation) (models.ConversationSummary, error) {
	pairs, err := conv.Pairs()
	if err != nil {
		return models.ConversationSummary{}, err
	}

	summary := models.ConversationSummary{
		ID:          conv.ID,
		PairCount:   len(pairs),
		CreatedAt:   conv.CreatedAt,
		LastUpdated: conv.LastUpdated,
	}
	if len(pairs) > 0 {
		summary.Preview = truncate(pairs[0].UserMessage, 80)
	}
	return summary, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
