package store

import (
	"github.com/karenos/fusion-chat/internal/chat"
)

// Store is the persistence boundary for conversation slots. The conversation
// core mutates turns only through a chat.Log; stores mirror those mutations.
type Store interface {
	SaveConversation(conv *chat.Conversation) error
	AppendTurns(conversationID string, startSeq int, turns ...chat.Turn) error
	TruncateFrom(conversationID string, seq int) error
	Load(conversationID string) (*chat.Conversation, error)
	List() ([]ConversationInfo, error)
	Delete(conversationID string) error
	Close() error
}

// ConversationInfo is a listing row.
type ConversationInfo struct {
	ID        string
	Name      string
	Model     string
	TurnCount int
}
