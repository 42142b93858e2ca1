package store

import (
	"chatai-backend/internal/models"
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub fans out conversation-change signals to per-user subscribers.
// It replaces ad hoc cross-component refresh events: each consumer
// subscribes directly and re-reads the list when signalled.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan struct{}]struct{})}
}

// Subscribe registers for change signals affecting the given user's
// conversations. The returned channel carries coalesced signals (buffer
// of one; a pending signal absorbs later ones). The cancel func
// releases the subscription and is safe to call more than once;
// double release must not panic and must not leak.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan struct{}]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish signals every subscriber of the given user. Non-blocking: a
// subscriber with a signal already pending is skipped.
func (h *Hub) Publish(userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// NotifyingStore decorates a Store with hub publication after every
// successful conversation mutation, so list subscribers see creates,
// appends and deletes without polling.
type NotifyingStore struct {
	Store
	hub *Hub
}

// Compile-time check to ensure NotifyingStore implements Store.
var _ Store = (*NotifyingStore)(nil)

// NewNotifyingStore wraps inner so that conversation writes publish to hub.
func NewNotifyingStore(inner Store, hub *Hub) *NotifyingStore {
	return &NotifyingStore{Store: inner, hub: hub}
}

func (s *NotifyingStore) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.Store.CreateConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(userID)
	return conv, nil
}

func (s *NotifyingStore) AppendTurnPair(ctx context.Context, conversationID, userID uuid.UUID, pair models.TurnPair) error {
	if err := s.Store.AppendTurnPair(ctx, conversationID, userID, pair); err != nil {
		return err
	}
	s.hub.Publish(userID)
	return nil
}

func (s *NotifyingStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.Store.DeleteConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	s.hub.Publish(userID)
	return nil
}
