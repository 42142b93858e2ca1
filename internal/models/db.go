package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated account in the database. The
// SystemMessageText column is the user's active system-prompt
// configuration, defaulted on sign-up and reloaded across sessions.
type User struct {
	ID                uuid.UUID `db:"id"`
	Email             string    `db:"email"`
	DisplayName       string    `db:"display_name"`
	HashedPassword    string    `db:"hashed_password"`
	SystemMessageText string    `db:"system_message_text"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Conversation represents one stored conversation. Messages is the
// JSONB-encoded append-only sequence of TurnPairs; its length only
// grows for the lifetime of the row.
type Conversation struct {
	ID          uuid.UUID       `db:"id"`
	UserID      uuid.UUID       `db:"user_id"`
	Messages    json.RawMessage `db:"messages"`
	CreatedAt   time.Time       `db:"created_at"`
	LastUpdated time.Time       `db:"last_updated"`
}

// Pairs decodes the stored message array.
func (c *Conversation) Pairs() ([]TurnPair, error) {
	if len(c.Messages) == 0 {
		return nil, nil
	}
	var pairs []TurnPair
	if err := json.Unmarshal(c.Messages, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}
