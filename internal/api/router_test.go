package api

import (
	"bytes"
	"chatai-backend/internal/config"
	"chatai-backend/internal/handlers"
	"chatai-backend/internal/llm"
	"chatai-backend/internal/models"
	"chatai-backend/internal/services"
	"chatai-backend/internal/store"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory store.Store for routing tests.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	convs map[uuid.UUID]*models.Conversation
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]*models.User),
		convs: make(map[uuid.UUID]*models.Conversation),
	}
}

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memStore) UpdateSystemMessage(ctx context.Context, userID uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.SystemMessageText = text
	return nil
}

func (m *memStore) CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := &models.Conversation{
		ID:          uuid.New(),
		UserID:      userID,
		Messages:    json.RawMessage("[]"),
		CreatedAt:   time.Now(),
		LastUpdated: time.Now(),
	}
	m.convs[conv.ID] = conv
	return conv, nil
}

func (m *memStore) AppendTurnPair(ctx context.Context, conversationID, userID uuid.UUID, pair models.TurnPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
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
	return nil
}

func (m *memStore) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok || conv.UserID != userID {
		return nil, store.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (m *memStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, conv := range m.convs {
		if conv.UserID == userID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (m *memStore) DeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok || conv.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.convs, conversationID)
	return nil
}

type staticProvider struct{ reply string }

func (p *staticProvider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	return p.reply, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:       "router-test-secret",
		TokenExpiration: time.Hour,
	}
	hub := store.NewHub()
	appStore := store.NewNotifyingStore(newMemStore(), hub)

	authService := services.NewAuthService(appStore, cfg)
	sessionService := services.NewSessionService(appStore)
	completionService := services.NewCompletionService(sessionService, appStore, &staticProvider{reply: "Hi!"}, 0)
	conversationService := services.NewConversationService(appStore, hub, sessionService)

	return NewRouter(RouterDependencies{
		AuthHandler:         handlers.NewAuthHandler(authService),
		ProfileHandler:      handlers.NewProfileHandlers(authService, sessionService),
		ConversationHandler: handlers.NewConversationHandlers(conversationService, sessionService),
		SessionHandler:      handlers.NewSessionHandlers(sessionService, completionService),
		Config:              cfg,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func signupAndLogin(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/v1/auth/signup", "", `{"email":"a@b.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", `{"email":"a@b.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rr := doJSON(t, router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/v1/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/v1/conversations", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignupLoginProfileFlow(t *testing.T) {
	router := newTestRouter(t)
	token := signupAndLogin(t, router)

	rr := doJSON(t, router, http.MethodGet, "/v1/profile", token, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var profile models.ProfileResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.Equal(t, "a@b.com", profile.Email)
	assert.Equal(t, config.DefaultSystemMessage, profile.SystemMessageText)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := signupAndLogin(t, router)

	rr := doJSON(t, router, http.MethodPost, "/v1/session", token, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var snap models.SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.DirectionIncoming, snap.Messages[0].Direction)

	rr = doJSON(t, router, http.MethodPost, "/v1/session/messages", token, `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "event: chunk")
	assert.Contains(t, rr.Body.String(), "event: done")

	// The committed pair shows up in the conversation list.
	rr = doJSON(t, router, http.MethodGet, "/v1/conversations", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var summaries []models.ConversationSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "hello", summaries[0].Preview)
	assert.Equal(t, 1, summaries[0].PairCount)

	rr = doJSON(t, router, http.MethodDelete, "/v1/session", token, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSendWithoutSessionOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := signupAndLogin(t, router)

	rr := doJSON(t, router, http.MethodPost, "/v1/session/messages", token, `{"message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
