package chat

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrTurnNotFound is returned by TurnAt for an index past the end.
	ErrTurnNotFound = errors.New("turn not found")
	// ErrIndexOutOfRange is returned for negative indices. This is a caller
	// bug, not a recoverable condition.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Log owns all mutation of a conversation's turns. Appends happen only in
// completed user/assistant pairs, so the turn count is even whenever no send
// is in flight. Truncation is the only deletion path; after TruncateFrom(i)
// no read observes a turn whose original index was >= i.
type Log struct {
	mu   sync.Mutex
	conv *Conversation
}

// NewLog wraps a conversation. The log must be the only writer of the
// conversation's turns for its invariants to hold.
func NewLog(conv *Conversation) *Log {
	return &Log{conv: conv}
}

// Conversation returns the wrapped conversation.
func (l *Log) Conversation() *Conversation {
	return l.conv
}

// AppendPair atomically appends a completed exchange. A failed send must not
// call this; there is no way to append a user turn without its assistant turn.
func (l *Log) AppendPair(user, assistant Turn) error {
	if user.Role != RoleUser {
		return fmt.Errorf("append pair: first turn has role %q, want %q", user.Role, RoleUser)
	}
	if assistant.Role != RoleAssistant {
		return fmt.Errorf("append pair: second turn has role %q, want %q", assistant.Role, RoleAssistant)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conv.turns = append(l.conv.turns, user, assistant)
	return nil
}

// TruncateFrom removes every turn at or after index. Truncating at or past
// the end is a no-op; a negative index is a caller bug.
func (l *Log) TruncateFrom(index int) error {
	if index < 0 {
		return fmt.Errorf("truncate from %d: %w", index, ErrIndexOutOfRange)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if index >= len(l.conv.turns) {
		return nil
	}
	l.conv.turns = l.conv.turns[:index]
	return nil
}

// TurnAt returns the turn at index.
func (l *Log) TurnAt(index int) (Turn, error) {
	if index < 0 {
		return Turn{}, fmt.Errorf("turn at %d: %w", index, ErrIndexOutOfRange)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if index >= len(l.conv.turns) {
		return Turn{}, fmt.Errorf("turn at %d: %w", index, ErrTurnNotFound)
	}
	return l.conv.turns[index], nil
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conv.turns)
}

// PairCount returns the number of completed user/assistant pairs.
func (l *Log) PairCount() int {
	return l.Len() / 2
}

// Turns returns a copy of the current turns.
func (l *Log) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Turn(nil), l.conv.turns...)
}

// Regenerate captures the text of the user turn at index and truncates that
// turn and everything after it. The caller re-issues a send with the returned
// text. Edit is the same operation with the caller modifying the text first.
func (l *Log) Regenerate(index int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	text, err := l.anchorText(index)
	if err != nil {
		return "", err
	}
	l.conv.turns = l.conv.turns[:index]
	return text, nil
}

// DeleteFrom removes the user turn at index and everything after it, with no
// re-send.
func (l *Log) DeleteFrom(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.anchorText(index); err != nil {
		return err
	}
	l.conv.turns = l.conv.turns[:index]
	return nil
}

// anchorText validates index as a truncation anchor. Only user turns anchor
// regenerate/edit/delete. Caller holds l.mu.
func (l *Log) anchorText(index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("anchor at %d: %w", index, ErrIndexOutOfRange)
	}
	if index >= len(l.conv.turns) {
		return "", fmt.Errorf("anchor at %d: %w", index, ErrTurnNotFound)
	}
	turn := l.conv.turns[index]
	if turn.Role != RoleUser {
		return "", fmt.Errorf("anchor at %d has role %q: only user turns anchor truncation", index, turn.Role)
	}
	return turn.Content, nil
}
