package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	CurrentTurn    int       `json:"current_turn"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ConversationMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Turn           int       `json:"turn"`
	CreatedAt      time.Time `json:"created_at"`
}
