package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AttachmentType identifies how reference data is formatted for injection.
type AttachmentType string

const (
	AttachmentJSON     AttachmentType = "json"
	AttachmentMarkdown AttachmentType = "markdown"
)

// Attachment is a reference-data file injected into request payloads as a
// trailing system message.
type Attachment struct {
	Name    string
	Type    AttachmentType
	Content []byte
}

// LoadAttachment reads a reference file from disk, detecting its type from
// the extension (.json, or .md/.markdown).
func LoadAttachment(path string) (*Attachment, error) {
	var typ AttachmentType
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		typ = AttachmentJSON
	case ".md", ".markdown":
		typ = AttachmentMarkdown
	default:
		return nil, fmt.Errorf("unsupported attachment type: %s (want .json or .md)", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if typ == AttachmentJSON && !json.Valid(content) {
		return nil, fmt.Errorf("attachment %s is not valid JSON", filepath.Base(path))
	}
	return &Attachment{
		Name:    filepath.Base(path),
		Type:    typ,
		Content: content,
	}, nil
}

// ReferenceBlock formats the attachment for injection: JSON is re-indented
// with stable two-space indentation, markdown passes through verbatim. Each
// is prefixed with a label identifying its type.
func (a *Attachment) ReferenceBlock() (string, error) {
	switch a.Type {
	case AttachmentJSON:
		var indented bytes.Buffer
		if err := json.Indent(&indented, bytes.TrimSpace(a.Content), "", "  "); err != nil {
			return "", fmt.Errorf("format attachment %s: %w", a.Name, err)
		}
		return "Reference Data (JSON):\n" + indented.String(), nil
	case AttachmentMarkdown:
		return "Reference Data (Markdown):\n" + string(a.Content), nil
	default:
		return "", fmt.Errorf("unknown attachment type %q", a.Type)
	}
}
