package store

import (
	"errors"

	"github.com/karenos/fusion-chat/internal/chat"
)

// NoopStore is a no-op implementation of Store used when persistence is
// disabled. It silently discards all writes and returns empty results for
// reads.
type NoopStore struct{}

func (s *NoopStore) SaveConversation(conv *chat.Conversation) error { return nil }

func (s *NoopStore) AppendTurns(conversationID string, startSeq int, turns ...chat.Turn) error {
	return nil
}

func (s *NoopStore) TruncateFrom(conversationID string, seq int) error { return nil }

func (s *NoopStore) Load(conversationID string) (*chat.Conversation, error) {
	return nil, errors.New("persistence is disabled")
}

func (s *NoopStore) List() ([]ConversationInfo, error) { return nil, nil }

func (s *NoopStore) Delete(conversationID string) error { return nil }

func (s *NoopStore) Close() error { return nil }
