package handlers

import (
	"chatai-backend/internal/auth"
	"chatai-backend/internal/services"
	"chatai-backend/internal/store"
	"chatai-backend/pkg/httputil"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ConversationHandlers handles HTTP requests for the stored
// conversation list: listing, point reads, resume, delete, and the live
// update stream.
type ConversationHandlers struct {
	conversations  *services.ConversationService
	sessionService *services.SessionService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(conversations *services.ConversationService, sessionService *services.SessionService) *ConversationHandlers {
	return &ConversationHandlers{
		conversations:  conversations,
		sessionService: sessionService,
	}
}

// HandleListConversations handles GET /v1/conversations.
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	summaries, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		log.Printf("ListConversations handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, summaries)
}

// HandleGetConversation handles GET /v1/conversations/{conversationID}.
func (h *ConversationHandlers) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	conv, err := h.conversations.Get(r.Context(), conversationID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("GetConversation handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get conversation")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// HandleResumeConversation handles POST /v1/conversations/{conversationID}/resume:
// the selected conversation becomes the session's active one, its pairs
// flattened back into turn history.
func (h *ConversationHandlers) HandleResumeConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.sessionService.Load(r.Context(), userID, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("ResumeConversation handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to resume conversation")
		return
	}

	snapshot, err := h.sessionService.Snapshot(userID)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to read session")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snapshot)
}

// HandleDeleteConversation handles DELETE /v1/conversations/{conversationID}.
func (h *ConversationHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.conversations.Delete(r.Context(), conversationID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("DeleteConversation handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleConversationEvents handles GET /v1/conversations/events: a
// server-sent-events stream that pushes the refreshed summary list
// whenever one of the user's conversations is created, updated or
// deleted. The hub subscription is released exactly once, when the
// request context ends.
func (h *ConversationHandlers) HandleConversationEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	signals, cancel := h.conversations.Subscribe(userID)
	defer cancel()

	// Push the current list immediately, then on every change signal.
	if err := h.writeListEvent(w, r, userID); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-signals:
			if err := h.writeListEvent(w, r, userID); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *ConversationHandlers) writeListEvent(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	summaries, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		log.Printf("ConversationEvents: failed to list conversations for user %s: %v", userID, err)
		return err
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: conversations\ndata: %s\n\n", payload)
	return err
}
