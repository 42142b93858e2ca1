package services

import (
	"chatai-backend/internal/chat"
	"chatai-backend/internal/llm"
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Custom errors for the completion service
var (
	ErrReplyInFlight = errors.New("a reply is already in flight for this session")
	ErrRateLimited   = errors.New("too many completion requests; slow down")
)

// CompletionService drives one request/reply cycle per call: build the
// provider request from session state, issue it, reveal the reply
// incrementally, and commit the turn pair on completion.
type CompletionService struct {
	sessions    *SessionService
	store       store.Store
	provider    llm.Provider
	typingDelay time.Duration
}

// NewCompletionService creates a new CompletionService. typingDelay is
// the per-character reveal delay; zero disables the pause but the reply
// still flows through the reveal channel.
func NewCompletionService(sessions *SessionService, s store.Store, provider llm.Provider, typingDelay time.Duration) *CompletionService {
	return &CompletionService{
		sessions:    sessions,
		store:       s,
		provider:    provider,
		typingDelay: typingDelay,
	}
}

// Send submits a user turn and runs the completion cycle. It blocks
// through the provider request; on success it returns a channel that
// reveals the reply one character at a time and is closed after the
// turn pair is committed. The reveal is cosmetic: cancelling ctx (or
// the session) mid-reveal commits nothing.
//
// At most one cycle is in flight per session; a second Send while one
// is running is rejected with ErrReplyInFlight and appends no turn.
func (s *CompletionService) Send(ctx context.Context, userID uuid.UUID, text string) (<-chan string, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}
	sess, err := s.sessions.get(userID)
	if err != nil {
		return nil, err
	}

	// Reserve the cycle before touching the history, so a racing
	// second submission is rejected without appending its turn.
	sess.mu.Lock()
	if sess.reply == ReplyRequesting || sess.reply == ReplyStreaming {
		sess.mu.Unlock()
		return nil, ErrReplyInFlight
	}
	if !sess.limiter.Allow() {
		sess.mu.Unlock()
		return nil, ErrRateLimited
	}
	revealCtx, cancel := context.WithCancel(ctx)
	sess.reply = ReplyRequesting
	sess.cancelReveal = cancel
	sess.mu.Unlock()

	fail := func() {
		sess.mu.Lock()
		if revealCtx.Err() != nil {
			// Cancelled, not failed: the cycle ends without commit.
			sess.reply = ReplyIdle
		} else {
			sess.reply = ReplyFailed
		}
		sess.cancelReveal = nil
		sess.mu.Unlock()
		cancel()
	}

	history, systemPrompt, err := s.sessions.SubmitUserTurn(userID, text)
	if err != nil {
		fail()
		return nil, err
	}

	// The conversation row must exist before anything can be
	// committed to it. Wait for the background create, never sleep.
	conversationID, err := s.sessions.AwaitActive(revealCtx, userID)
	if err != nil {
		fail()
		return nil, err
	}

	messages, err := chat.ToProviderMessages(history, systemPrompt)
	if err != nil {
		// Empty system prompt at send time is a defect the session
		// state machine should have prevented.
		fail()
		return nil, err
	}

	reply, err := s.provider.Complete(revealCtx, messages)
	if err != nil {
		log.Printf("ERROR [CompletionService] Provider call failed for user %s: %v", userID, err)
		fail()
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	sess.mu.Lock()
	sess.reply = ReplyStreaming
	sess.mu.Unlock()

	out := make(chan string)
	go s.reveal(revealCtx, sess, conversationID, text, reply, out)
	return out, nil
}

// reveal feeds the already-complete reply to out one rune at a time,
// then commits: assistant turn into the session history, turn pair into
// the store. Cancellation at any point before the last rune leaves the
// history and the store untouched.
func (s *CompletionService) reveal(ctx context.Context, sess *Session, conversationID uuid.UUID, userMessage, reply string, out chan<- string) {
	defer close(out)

	abort := func() {
		sess.mu.Lock()
		if sess.reply == ReplyStreaming {
			sess.reply = ReplyIdle
		}
		sess.cancelReveal = nil
		sess.mu.Unlock()
	}

	for _, r := range reply {
		if s.typingDelay > 0 {
			select {
			case <-ctx.Done():
				abort()
				return
			case <-time.After(s.typingDelay):
			}
		}
		select {
		case out <- string(r):
		case <-ctx.Done():
			abort()
			return
		}
	}

	sess.mu.Lock()
	sess.history = append(sess.history, models.Turn{Role: models.RoleAssistant, Content: reply})
	sess.reply = ReplyCommitted
	sess.cancelReveal = nil
	sess.mu.Unlock()

	// The commit outlives the request that triggered it; a client that
	// disconnects after the reveal finished still gets its pair stored.
	commitCtx, cancelCommit := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCommit()
	pair := models.TurnPair{UserMessage: userMessage, AIResponse: reply}
	if err := s.store.AppendTurnPair(commitCtx, conversationID, sess.userID, pair); err != nil {
		// The session shows the reply but the store missed it: an
		// acknowledged inconsistency window, logged and abandoned.
		log.Printf("ERROR [CompletionService] Failed to append turn pair to conversation %s: %v", conversationID, err)
	}

	sess.mu.Lock()
	if sess.reply == ReplyCommitted {
		sess.reply = ReplyIdle
	}
	sess.mu.Unlock()
}

// Cancel stops an in-flight request or reveal without committing
// anything. A no-op when nothing is in flight.
func (s *CompletionService) Cancel(userID uuid.UUID) error {
	sess, err := s.sessions.get(userID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.reply == ReplyRequesting || sess.reply == ReplyStreaming {
		sess.cancelPendingRevealLocked()
		sess.reply = ReplyIdle
	}
	return nil
}

// ReplyStateFor reports the session's current reply state.
func (s *CompletionService) ReplyStateFor(userID uuid.UUID) (ReplyState, error) {
	sess, err := s.sessions.get(userID)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.reply, nil
}
