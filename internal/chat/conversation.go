package chat

import (
	"time"
)

// Conversation is one chat slot: an ordered sequence of turns plus metadata.
// Turns are mutated only through a Log.
type Conversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	ActiveModel  string    `json:"active_model"`
	CreatedAt    time.Time `json:"created_at"`

	turns []Turn
}

// NewConversation creates an empty conversation slot.
func NewConversation(name, systemPrompt, model string) *Conversation {
	return &Conversation{
		ID:           NewID(),
		Name:         name,
		SystemPrompt: systemPrompt,
		ActiveModel:  model,
		CreatedAt:    time.Now(),
	}
}

// RestoreConversation rebuilds a conversation from persisted state.
func RestoreConversation(id, name, systemPrompt, model string, createdAt time.Time, turns []Turn) *Conversation {
	return &Conversation{
		ID:           id,
		Name:         name,
		SystemPrompt: systemPrompt,
		ActiveModel:  model,
		CreatedAt:    createdAt,
		turns:        append([]Turn(nil), turns...),
	}
}
