package services

import (
	"chatai-backend/internal/chat"
	"chatai-backend/internal/config"
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Custom errors for the session service
var (
	ErrNoSession            = errors.New("no active session for user")
	ErrEmptyMessage         = errors.New("message text cannot be empty")
	ErrNoActiveConversation = errors.New("session has no conversation; start a new one first")
)

// ConversationState tracks the session's conversation identity.
type ConversationState string

const (
	ConvStateNone          ConversationState = "NONE"
	ConvStatePendingCreate ConversationState = "PENDING_CREATE"
	ConvStateActive        ConversationState = "ACTIVE"
)

// ReplyState tracks one request/reveal cycle for a session.
type ReplyState string

const (
	ReplyIdle       ReplyState = "IDLE"
	ReplyRequesting ReplyState = "REQUESTING"
	ReplyStreaming  ReplyState = "STREAMING"
	ReplyCommitted  ReplyState = "COMMITTED"
	ReplyFailed     ReplyState = "FAILED"
)

// Session is the in-memory state for one authenticated client: the
// active conversation's identity, what the user has said so far, and
// the current system prompt. Exactly one session exists per user.
type Session struct {
	mu sync.Mutex

	userID         uuid.UUID
	state          ConversationState
	conversationID uuid.UUID // uuid.Nil while state != ConvStateActive
	systemMessage  string
	history        []models.Turn
	// greeting marks a fresh conversation. The greeting is shown to
	// the user but is presentation only: it never becomes part of a
	// provider request.
	greeting bool

	// active is closed once the background conversation create
	// resolves. createErr is set first when that create failed.
	active    chan struct{}
	createErr error

	// reply lifecycle, owned by the completion service
	reply        ReplyState
	cancelReveal context.CancelFunc
	limiter      *rate.Limiter
}

// SessionService is the single source of truth for what conversation is
// active per user and what has been said so far.
type SessionService struct {
	store store.Store

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewSessionService creates a new SessionService.
func NewSessionService(s store.Store) *SessionService {
	return &SessionService{
		store:    s,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (s *SessionService) get(userID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// loadSystemMessage reads the user's persisted system prompt, falling
// back to the local default when the profile cannot be read. The
// returned text is never empty.
func (s *SessionService) loadSystemMessage(ctx context.Context, userID uuid.UUID) string {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil || user.SystemMessageText == "" {
		if err != nil {
			log.Printf("WARN [SessionService] Falling back to default system message for user %s: %v", userID, err)
		}
		return config.DefaultSystemMessage
	}
	return user.SystemMessageText
}

// StartNew resets the user's session to a fresh conversation: greeting
// turn only, no conversation id yet. The backing conversation row is
// created in the background once the system prompt is known; callers
// that need the id wait via AwaitActive rather than sleeping.
func (s *SessionService) StartNew(ctx context.Context, userID uuid.UUID) (*Session, error) {
	systemMessage := s.loadSystemMessage(ctx, userID)

	sess := &Session{
		userID:        userID,
		state:         ConvStatePendingCreate,
		systemMessage: systemMessage,
		greeting:      true,
		active:        make(chan struct{}),
		reply:         ReplyIdle,
		limiter:       rate.NewLimiter(rate.Every(time.Second), 3),
	}

	s.mu.Lock()
	if prev, ok := s.sessions[userID]; ok {
		prev.cancelPendingReveal()
	}
	s.sessions[userID] = sess
	s.mu.Unlock()

	// The create does not block the caller and survives the request
	// that triggered it.
	go func() {
		createCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conv, err := s.store.CreateConversation(createCtx, userID)

		sess.mu.Lock()
		defer sess.mu.Unlock()
		if err != nil {
			log.Printf("ERROR [SessionService] Failed to create conversation for user %s: %v", userID, err)
			sess.state = ConvStateNone
			sess.createErr = err
			close(sess.active)
			return
		}
		sess.state = ConvStateActive
		sess.conversationID = conv.ID
		close(sess.active)
	}()

	return sess, nil
}

// Load resumes a stored conversation: fetches it, flattens each turn
// pair into a user turn followed by an assistant turn, and makes it the
// active conversation immediately.
func (s *SessionService) Load(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	pairs, err := conv.Pairs()
	if err != nil {
		return fmt.Errorf("failed to parse conversation messages: %w", err)
	}

	systemMessage := s.loadSystemMessage(ctx, userID)

	sess := &Session{
		userID:         userID,
		state:          ConvStateActive,
		conversationID: conv.ID,
		systemMessage:  systemMessage,
		history:        chat.FlattenPairs(pairs),
		active:         closedChan(),
		reply:          ReplyIdle,
		limiter:        rate.NewLimiter(rate.Every(time.Second), 3),
	}

	s.mu.Lock()
	if prev, ok := s.sessions[userID]; ok {
		prev.cancelPendingReveal()
	}
	s.sessions[userID] = sess
	s.mu.Unlock()

	return nil
}

// SubmitUserTurn appends a user turn and returns a snapshot of the
// updated history together with the active system prompt. Empty text is
// rejected as a no-op.
func (s *SessionService) SubmitUserTurn(userID uuid.UUID, text string) ([]models.Turn, string, error) {
	if text == "" {
		return nil, "", ErrEmptyMessage
	}
	sess, err := s.get(userID)
	if err != nil {
		return nil, "", err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.history = append(sess.history, models.Turn{Role: models.RoleUser, Content: text})
	snapshot := make([]models.Turn, len(sess.history))
	copy(snapshot, sess.history)
	return snapshot, sess.systemMessage, nil
}

// AwaitActive blocks until the session's conversation exists in the
// store, or ctx ends. This is the ordering guard between conversation
// creation and the first completion commit: never a timed wait.
func (s *SessionService) AwaitActive(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	sess, err := s.get(userID)
	if err != nil {
		return uuid.Nil, err
	}

	sess.mu.Lock()
	active := sess.active
	sess.mu.Unlock()

	select {
	case <-active:
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != ConvStateActive {
		if sess.createErr != nil {
			return uuid.Nil, fmt.Errorf("conversation was not created: %w", sess.createErr)
		}
		return uuid.Nil, ErrNoActiveConversation
	}
	return sess.conversationID, nil
}

// SetSystemMessage updates the session's active system prompt and
// persists it only when it differs from the stored profile value, so
// repeated identical updates do not produce redundant writes.
func (s *SessionService) SetSystemMessage(ctx context.Context, userID uuid.UUID, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	if sess, err := s.get(userID); err == nil {
		sess.mu.Lock()
		sess.systemMessage = text
		sess.mu.Unlock()
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if user.SystemMessageText == text {
		return nil
	}
	if err := s.store.UpdateSystemMessage(ctx, userID, text); err != nil {
		return fmt.Errorf("failed to persist system message: %w", err)
	}
	return nil
}

// Snapshot returns the session's visible state: conversation id (nil
// until active) and the display projection of the history.
func (s *SessionService) Snapshot(userID uuid.UUID) (*models.SessionResponse, error) {
	sess, err := s.get(userID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	messages := make([]models.DisplayMessage, 0, len(sess.history)+1)
	if sess.greeting {
		messages = append(messages, chat.ToDisplay(chat.GreetingTurn()))
	}
	messages = append(messages, chat.ToDisplayAll(sess.history)...)

	resp := &models.SessionResponse{
		Messages: messages,
	}
	if sess.state == ConvStateActive {
		id := sess.conversationID
		resp.ConversationID = &id
	}
	return resp, nil
}

// ClearConversation resets the session when its active conversation was
// deleted: greeting-only history, no conversation id. Deleting a
// non-active conversation leaves the session untouched.
func (s *SessionService) ClearConversation(userID, deletedConversationID uuid.UUID) {
	sess, err := s.get(userID)
	if err != nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.conversationID != deletedConversationID {
		return
	}
	sess.cancelPendingRevealLocked()
	sess.state = ConvStateNone
	sess.conversationID = uuid.Nil
	sess.history = nil
	sess.greeting = true
	sess.createErr = nil
	// Leave the channel closed so a stray send fails fast with
	// ErrNoActiveConversation instead of blocking on a create that
	// will never happen.
	sess.active = closedChan()
}

// End tears the session down on sign-out: any in-flight reveal is
// cancelled so no stale text lands after the user is gone.
func (s *SessionService) End(userID uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok {
		sess.cancelPendingReveal()
	}
}

func (sess *Session) cancelPendingReveal() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.cancelPendingRevealLocked()
}

func (sess *Session) cancelPendingRevealLocked() {
	if sess.cancelReveal != nil {
		sess.cancelReveal()
		sess.cancelReveal = nil
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
