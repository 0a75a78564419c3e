package llm

import (
	"fmt"
	"strings"

	"github.com/karenos/fusion-chat/internal/chat"
)

// constrainedHistoryTurns is how much history a constrained-context backend
// sees: the most recent completed exchange.
const constrainedHistoryTurns = 2

// referenceSeparator joins the system prompt and reference block when both
// must fit in a single system message.
const referenceSeparator = "\n\n---\n\n"

// BuildPayload assembles the ordered message list for one send. newUserText
// must be non-empty (enforced by the caller). attachment may be nil.
//
// General case: system prompt (if non-empty), all prior turns in order, the
// reference-data block as a trailing system message immediately before the
// new user message, then the new user message.
//
// Embedded models run with a constrained context: the system prompt and
// reference data merge into a single system message and only the last
// exchange of history is included.
//
// The returned list is freshly allocated; building has no side effects.
func BuildPayload(conv *chat.Conversation, turns []chat.Turn, newUserText string, attachment *chat.Attachment, ref ModelRef) ([]Message, error) {
	var referenceBlock string
	if attachment != nil {
		block, err := attachment.ReferenceBlock()
		if err != nil {
			return nil, fmt.Errorf("build payload: %w", err)
		}
		referenceBlock = block
	}

	if ref.Kind == ModelEmbedded {
		return buildConstrained(conv.SystemPrompt, turns, newUserText, referenceBlock), nil
	}
	return buildFull(conv.SystemPrompt, turns, newUserText, referenceBlock), nil
}

func buildFull(systemPrompt string, turns []chat.Turn, newUserText, referenceBlock string) []Message {
	messages := make([]Message, 0, len(turns)+3)

	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}

	messages = append(messages, historyMessages(turns)...)

	// Reference data goes last so it is fresh in context for the new request.
	if referenceBlock != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: referenceBlock})
	}

	messages = append(messages, Message{Role: RoleUser, Content: newUserText})
	return messages
}

func buildConstrained(systemPrompt string, turns []chat.Turn, newUserText, referenceBlock string) []Message {
	messages := make([]Message, 0, constrainedHistoryTurns+2)

	// One merged system message conserves message count and tokens.
	var parts []string
	if strings.TrimSpace(systemPrompt) != "" {
		parts = append(parts, systemPrompt)
	}
	if referenceBlock != "" {
		parts = append(parts, referenceBlock)
	}
	if len(parts) > 0 {
		messages = append(messages, Message{Role: RoleSystem, Content: strings.Join(parts, referenceSeparator)})
	}

	history := historyMessages(turns)
	if len(history) > constrainedHistoryTurns {
		history = history[len(history)-constrainedHistoryTurns:]
	}
	messages = append(messages, history...)

	messages = append(messages, Message{Role: RoleUser, Content: newUserText})
	return messages
}

// historyMessages converts prior turns to payload messages. Error turns are
// display-only and never sent upstream.
func historyMessages(turns []chat.Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == chat.RoleError {
			continue
		}
		messages = append(messages, Message{
			Role:    Role(turn.Role),
			Content: turn.Content,
		})
	}
	return messages
}
