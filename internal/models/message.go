package models

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Direction indicates how a message is rendered relative to the user.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Turn is a single message in a conversation, attributed to a role.
// Turns are immutable once created; ordering within a conversation is
// insertion order and is significant.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DisplayMessage is the UI-facing projection of a Turn. Derived, never
// independently authoritative.
type DisplayMessage struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Direction Direction `json:"direction"`
}

// TurnPair is the persisted unit combining one user submission and its
// committed assistant reply. Partial or streaming replies are never
// stored as pairs.
type TurnPair struct {
	UserMessage string `json:"userMessage"`
	AIResponse  string `json:"aiResponse"`
}
