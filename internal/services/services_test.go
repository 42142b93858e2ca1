package services

import (
	"chatai-backend/internal/llm"
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory store.Store used across the service tests.
// AppendTurnPair follows the real adapter's additive semantics.
type fakeStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	convs map[uuid.UUID]*models.Conversation

	createConvErr error
	createDelay   time.Duration
	appendErr     error

	appendCalls        []appendCall
	systemMsgWrites    []string
	createdConvUserIDs []uuid.UUID
}

type appendCall struct {
	conversationID uuid.UUID
	pair           models.TurnPair
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[uuid.UUID]*models.User),
		convs: make(map[uuid.UUID]*models.Conversation),
	}
}

func (f *fakeStore) addUser(user *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
}

func (f *fakeStore) addConversation(userID uuid.UUID, pairs []models.TurnPair) *models.Conversation {
	raw, _ := json.Marshal(pairs)
	conv := &models.Conversation{
		ID:          uuid.New(),
		UserID:      userID,
		Messages:    raw,
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[conv.ID] = conv
	return conv
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) UpdateSystemMessage(ctx context.Context, userID uuid.UUID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.SystemMessageText = text
	f.systemMsgWrites = append(f.systemMsgWrites, text)
	return nil
}

func (f *fakeStore) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	if f.createDelay > 0 {
		select {
		case <-time.After(f.createDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createConvErr != nil {
		return nil, f.createConvErr
	}
	conv := &models.Conversation{
		ID:          uuid.New(),
		UserID:      userID,
		Messages:    json.RawMessage("[]"),
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
	f.convs[conv.ID] = conv
	f.createdConvUserIDs = append(f.createdConvUserIDs, userID)
	return conv, nil
}

func (f *fakeStore) AppendTurnPair(ctx context.Context, conversationID, userID uuid.UUID, pair models.TurnPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	conv, ok := f.convs[conversationID]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	var pairs []models.TurnPair
	if len(conv.Messages) > 0 {
		if err := json.Unmarshal(conv.Messages, &pairs); err != nil {
			return err
		}
	}
	pairs = append(pairs, pair)
	raw, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	conv.Messages = raw
	conv.LastUpdated = time.Now()
	f.appendCalls = append(f.appendCalls, appendCall{conversationID: conversationID, pair: pair})
	return nil
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok || conv.UserID != userID {
		return nil, store.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, conv := range f.convs {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	// Reverse-chronological by LastUpdated
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastUpdated.After(out[i].LastUpdated) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[conversationID]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.convs, conversationID)
	return nil
}

func (f *fakeStore) appendCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appendCalls)
}

// fakeProvider is a canned llm.Provider that records what it was asked.
type fakeProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests [][]llm.Message
}

var _ llm.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, messages)
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *fakeProvider) lastRequest() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

// drain collects the whole reveal stream.
func drain(ch <-chan string) string {
	var out string
	for chunk := range ch {
		out += chunk
	}
	return out
}
