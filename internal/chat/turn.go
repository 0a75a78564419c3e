package chat

import (
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Reasoning  string    `json:"reasoning,omitempty"` // assistant turns only
	Timestamp  time.Time `json:"timestamp"`
	Model      string    `json:"model,omitempty"`      // assistant turns only
	TTFT       float64   `json:"ttft,omitempty"`       // seconds to first token, assistant turns only
	Attachment string    `json:"attachment,omitempty"` // file name active at send time, user turns only
}

// NewUserTurn creates a user turn. attachment is the name of the reference
// file active at send time, or "" if none.
func NewUserTurn(content, attachment string) Turn {
	return Turn{
		Role:       RoleUser,
		Content:    content,
		Attachment: attachment,
		Timestamp:  time.Now(),
	}
}

// NewAssistantTurn creates a completed assistant turn.
func NewAssistantTurn(content, reasoning, model string, ttftSeconds float64) Turn {
	return Turn{
		Role:      RoleAssistant,
		Content:   content,
		Reasoning: reasoning,
		Model:     model,
		TTFT:      ttftSeconds,
		Timestamp: time.Now(),
	}
}

// NewErrorTurn creates an error turn for display. Error turns are rendered
// but never included in request payloads.
func NewErrorTurn(message string) Turn {
	return Turn{
		Role:      RoleError,
		Content:   message,
		Timestamp: time.Now(),
	}
}
