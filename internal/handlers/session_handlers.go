package handlers

import (
	"chatai-backend/internal/auth"
	"chatai-backend/internal/chat"
	api_models "chatai-backend/internal/models"
	"chatai-backend/internal/services"
	"chatai-backend/pkg/httputil"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// SessionHandlers handles HTTP requests for the active session: start,
// read, submit-and-stream, cancel, teardown.
type SessionHandlers struct {
	sessionService *services.SessionService
	completions    *services.CompletionService
}

// NewSessionHandlers creates a new SessionHandlers instance.
func NewSessionHandlers(sessionService *services.SessionService, completions *services.CompletionService) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		completions:    completions,
	}
}

// HandleStartSession handles POST /v1/session: a fresh conversation
// with the greeting turn. The backing row is created asynchronously;
// the response does not wait for it.
func (h *SessionHandlers) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if _, err := h.sessionService.StartNew(r.Context(), userID); err != nil {
		log.Printf("StartSession handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	snapshot, err := h.sessionService.Snapshot(userID)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to read session")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, snapshot)
}

// HandleGetSession handles GET /v1/session/messages.
func (h *SessionHandlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	snapshot, err := h.sessionService.Snapshot(userID)
	if err != nil {
		if errors.Is(err, services.ErrNoSession) {
			httputil.RespondError(w, http.StatusNotFound, "No active session")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to read session")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snapshot)
}

// HandleSendMessage handles POST /v1/session/messages: submits the user
// turn, runs the completion cycle, and streams the reveal as
// server-sent events, one chunk per character, with a final done event
// after the turn pair is committed.
func (h *SessionHandlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req api_models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	chunks, err := h.completions.Send(r.Context(), userID, req.Message)
	if err != nil {
		log.Printf("SendMessage handler failed for user %s: %v", userID, err)
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			httputil.RespondError(w, http.StatusBadRequest, "message cannot be empty")
		case errors.Is(err, services.ErrNoSession):
			httputil.RespondError(w, http.StatusNotFound, "No active session")
		case errors.Is(err, services.ErrNoActiveConversation):
			httputil.RespondError(w, http.StatusConflict, "No active conversation; start a new session first")
		case errors.Is(err, services.ErrReplyInFlight):
			httputil.RespondError(w, http.StatusConflict, "A reply is already in flight")
		case errors.Is(err, services.ErrRateLimited):
			httputil.RespondError(w, http.StatusTooManyRequests, "Too many requests")
		case errors.Is(err, chat.ErrEmptySystemPrompt):
			httputil.RespondError(w, http.StatusConflict, "System prompt is not configured")
		default:
			// Provider failures included: cycle aborted, nothing stored.
			httputil.RespondError(w, http.StatusBadGateway, "Completion failed: "+err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range chunks {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

// HandleCancelReply handles POST /v1/session/cancel: stops an in-flight
// request or reveal without committing anything.
func (h *SessionHandlers) HandleCancelReply(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.completions.Cancel(userID); err != nil {
		if errors.Is(err, services.ErrNoSession) {
			httputil.RespondError(w, http.StatusNotFound, "No active session")
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to cancel reply")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleEndSession handles DELETE /v1/session: sign-out teardown. Any
// in-flight reveal is cancelled and the in-memory state dropped.
func (h *SessionHandlers) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	h.sessionService.End(userID)
	w.WriteHeader(http.StatusNoContent)
}
