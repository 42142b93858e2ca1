package chat

import (
	"chatai-backend/internal/llm"
	"chatai-backend/internal/models"
	"errors"
)

// ErrEmptySystemPrompt is returned when a provider request is assembled
// without a system prompt. Issuing a completion with an empty system
// prompt is a configuration error, not a user error.
var ErrEmptySystemPrompt = errors.New("system prompt is empty")

// Greeting is the canonical opening turn shown at the start of every
// new conversation. It is display-only and never sent to the provider
// as an assistant turn on its own.
const Greeting = "Hello, I am your AI assistant. Feel free to ask me anything."

// GreetingTurn returns the canonical greeting as an assistant turn.
func GreetingTurn() models.Turn {
	return models.Turn{Role: models.RoleAssistant, Content: Greeting}
}

// ToProviderMessages builds the wire-format message sequence for a
// completion request: one system entry built from systemPrompt,
// followed by every turn in history, order preserved. The role mapping
// is total: assistant turns map to the assistant role, everything else
// maps to user.
func ToProviderMessages(history []models.Turn, systemPrompt string) ([]llm.Message, error) {
	if systemPrompt == "" {
		return nil, ErrEmptySystemPrompt
	}

	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: string(models.RoleSystem), Content: systemPrompt})
	for _, turn := range history {
		role := string(models.RoleUser)
		if turn.Role == models.RoleAssistant {
			role = string(models.RoleAssistant)
		}
		out = append(out, llm.Message{Role: role, Content: turn.Content})
	}
	return out, nil
}

// ToDisplay projects a turn into its UI representation. Direction is
// incoming iff the turn came from the assistant.
func ToDisplay(turn models.Turn) models.DisplayMessage {
	if turn.Role == models.RoleAssistant {
		return models.DisplayMessage{
			Message:   turn.Content,
			Sender:    string(models.RoleAssistant),
			Direction: models.DirectionIncoming,
		}
	}
	return models.DisplayMessage{
		Message:   turn.Content,
		Sender:    string(models.RoleUser),
		Direction: models.DirectionOutgoing,
	}
}

// ToDisplayAll projects a full history in order.
func ToDisplayAll(history []models.Turn) []models.DisplayMessage {
	out := make([]models.DisplayMessage, 0, len(history))
	for _, turn := range history {
		out = append(out, ToDisplay(turn))
	}
	return out
}

// FlattenPairs reconstructs the in-memory turn history from stored
// turn pairs: each pair expands to its user turn followed by its
// assistant turn, matching the stored sequence exactly.
func FlattenPairs(pairs []models.TurnPair) []models.Turn {
	out := make([]models.Turn, 0, len(pairs)*2)
	for _, pair := range pairs {
		out = append(out,
			models.Turn{Role: models.RoleUser, Content: pair.UserMessage},
			models.Turn{Role: models.RoleAssistant, Content: pair.AIResponse},
		)
	}
	return out
}
