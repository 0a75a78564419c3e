package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExportedMessage is one turn in an export snapshot. Attachment appears only
// on user turns; model and reasoning only on assistant turns. TTFT and raw
// timestamps are deliberately excluded.
type ExportedMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
	Model      string `json:"model,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// ExportMetadata summarizes a snapshot.
type ExportMetadata struct {
	TotalMessages int    `json:"totalMessages"`
	MessagePairs  int    `json:"messagePairs"`
	ExportVersion string `json:"exportVersion"`
}

// Snapshot is a serializable export of one conversation.
type Snapshot struct {
	ChatName      string            `json:"chatName"`
	ExportedAt    string            `json:"exportedAt"`
	CreatedAt     string            `json:"createdAt"`
	Model         string            `json:"model,omitempty"`
	SystemPrompt  string            `json:"systemPrompt,omitempty"`
	ReferenceData string            `json:"referenceData,omitempty"`
	Messages      []ExportedMessage `json:"messages"`
	Metadata      ExportMetadata    `json:"metadata"`
	Note          string            `json:"note"`
}

const exportNote = "In the actual API payload sent to the model, the systemPrompt is sent first as a system message, followed by all previous conversation messages, then the referenceData (if any) is injected as a system message immediately before each user request. The 'attachment' field in user messages indicates which JSON file was active at the time of that request."

// Export produces a snapshot of the conversation. referenceData is the
// formatted reference block of the active attachment, or "" if none.
func Export(conv *Conversation, turns []Turn, referenceData string) Snapshot {
	now := time.Now()
	messages := make([]ExportedMessage, 0, len(turns))
	for _, turn := range turns {
		msg := ExportedMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		}
		switch turn.Role {
		case RoleUser:
			msg.Attachment = turn.Attachment
		case RoleAssistant:
			msg.Model = turn.Model
			msg.Reasoning = turn.Reasoning
		}
		messages = append(messages, msg)
	}

	return Snapshot{
		ChatName:      conv.Name,
		ExportedAt:    now.UTC().Format(time.RFC3339),
		CreatedAt:     conv.CreatedAt.UTC().Format(time.RFC3339),
		Model:         conv.ActiveModel,
		SystemPrompt:  conv.SystemPrompt,
		ReferenceData: referenceData,
		Messages:      messages,
		Metadata: ExportMetadata{
			TotalMessages: len(messages),
			MessagePairs:  len(messages) / 2,
			ExportVersion: now.Format("20060102.150405"),
		},
		Note: exportNote,
	}
}

// MarshalIndent renders the snapshot as indented JSON.
func (s Snapshot) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// escapeTableCell escapes characters that break markdown table cells.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// ExportToMarkdown renders a conversation as readable markdown.
func ExportToMarkdown(conv *Conversation, turns []Turn) string {
	var b strings.Builder

	title := conv.Name
	if title == "" {
		title = ShortID(conv.ID)
	}
	b.WriteString(fmt.Sprintf("# Chat: %s\n\n", escapeTableCell(title)))

	b.WriteString("## Setup\n\n")
	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")
	if conv.ActiveModel != "" {
		b.WriteString(fmt.Sprintf("| **Model** | %s |\n", escapeTableCell(conv.ActiveModel)))
	}
	b.WriteString(fmt.Sprintf("| **Created** | %s |\n", conv.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")))
	b.WriteString(fmt.Sprintf("| **Messages** | %d |\n", len(turns)))
	b.WriteString("\n")

	if conv.SystemPrompt != "" {
		b.WriteString("## System Prompt\n\n")
		b.WriteString(conv.SystemPrompt)
		b.WriteString("\n\n")
	}

	b.WriteString("## Conversation\n\n")
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			b.WriteString("### User\n\n")
			if turn.Attachment != "" {
				b.WriteString(fmt.Sprintf("*Attachment: %s*\n\n", escapeTableCell(turn.Attachment)))
			}
		case RoleAssistant:
			if turn.Model != "" {
				b.WriteString(fmt.Sprintf("### Assistant (%s)\n\n", escapeTableCell(turn.Model)))
			} else {
				b.WriteString("### Assistant\n\n")
			}
			if turn.Reasoning != "" {
				b.WriteString("<details><summary>Reasoning</summary>\n\n")
				b.WriteString(turn.Reasoning)
				b.WriteString("\n\n</details>\n\n")
			}
		case RoleError:
			b.WriteString("### Error\n\n")
		default:
			b.WriteString("### System\n\n")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}
