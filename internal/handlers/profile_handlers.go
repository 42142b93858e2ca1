package handlers

import (
	"chatai-backend/internal/auth"
	api_models "chatai-backend/internal/models"
	"chatai-backend/internal/services"
	"chatai-backend/internal/store"
	"chatai-backend/pkg/httputil"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// ProfileHandlers handles HTTP requests for the user profile, including
// the persisted system-prompt text.
type ProfileHandlers struct {
	authService    *services.AuthService
	sessionService *services.SessionService
}

// NewProfileHandlers creates a new ProfileHandlers instance.
func NewProfileHandlers(authService *services.AuthService, sessionService *services.SessionService) *ProfileHandlers {
	return &ProfileHandlers{
		authService:    authService,
		sessionService: sessionService,
	}
}

// HandleGetProfile handles GET /v1/profile.
func (h *ProfileHandlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.authService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("GetProfile handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, profile)
}

// HandleUpdateSystemMessage handles PUT /v1/profile/system-message. The
// update flows through the session controller so the active session and
// the persisted profile stay in step; identical text is not rewritten.
func (h *ProfileHandlers) HandleUpdateSystemMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req api_models.UpdateSystemMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := h.sessionService.SetSystemMessage(r.Context(), userID, req.SystemMessageText); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			httputil.RespondError(w, http.StatusBadRequest, "system_message_text cannot be empty")
		case errors.Is(err, store.ErrNotFound):
			httputil.RespondError(w, http.StatusNotFound, "Profile not found")
		default:
			log.Printf("UpdateSystemMessage handler failed for user %s: %v", userID, err)
			httputil.RespondError(w, http.StatusInternalServerError, "Failed to update system message")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
