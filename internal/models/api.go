package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateSystemMessageRequest defines the body for updating the user's
// system-prompt text.
type UpdateSystemMessageRequest struct {
	SystemMessageText string `json:"system_message_text"`
}

// SendMessageRequest defines the body for submitting a user turn to the
// active session.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ProfileResponse defines the profile data returned by the API.
type ProfileResponse struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"display_name,omitempty"`
	SystemMessageText string    `json:"system_message_text"`
	CreatedAt         time.Time `json:"created_at"`
}

// ConversationSummary describes one entry in the conversation list,
// ordered by LastUpdated descending.
type ConversationSummary struct {
	ID          uuid.UUID `json:"id"`
	Preview     string    `json:"preview,omitempty"`
	PairCount   int       `json:"pair_count"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// ConversationResponse is the full stored conversation.
type ConversationResponse struct {
	ID          uuid.UUID  `json:"id"`
	Messages    []TurnPair `json:"messages"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
}

// SessionResponse describes the active session's visible state.
type SessionResponse struct {
	ConversationID *uuid.UUID       `json:"conversation_id"`
	Messages       []DisplayMessage `json:"messages"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
