package chat

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExportRoleConditionalFields(t *testing.T) {
	conv := NewConversation("demo", "Be terse.", "some/model")
	turns := []Turn{
		NewUserTurn("what is in the file?", "data.json"),
		NewAssistantTurn("numbers", "the file holds numbers", "some/model", 0.42),
	}

	snap := Export(conv, turns, "Reference Data (JSON):\n{\n  \"a\": 1\n}")

	if len(snap.Messages) != 2 {
		t.Fatalf("messages=%d, want 2", len(snap.Messages))
	}

	user := snap.Messages[0]
	if user.Attachment != "data.json" {
		t.Fatalf("user attachment=%q", user.Attachment)
	}
	if user.Model != "" || user.Reasoning != "" {
		t.Fatalf("user message carries assistant fields: %+v", user)
	}

	assistant := snap.Messages[1]
	if assistant.Model != "some/model" || assistant.Reasoning != "the file holds numbers" {
		t.Fatalf("assistant fields missing: %+v", assistant)
	}
	if assistant.Attachment != "" {
		t.Fatalf("assistant message carries attachment: %+v", assistant)
	}

	if snap.Metadata.TotalMessages != 2 || snap.Metadata.MessagePairs != 1 {
		t.Fatalf("metadata=%+v", snap.Metadata)
	}
	if snap.Note == "" {
		t.Fatal("note missing")
	}
}

func TestExportVersionFormat(t *testing.T) {
	conv := NewConversation("demo", "", "")
	snap := Export(conv, nil, "")

	version := snap.Metadata.ExportVersion
	parts := strings.Split(version, ".")
	if len(parts) != 2 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		t.Fatalf("exportVersion=%q, want YYYYMMDD.HHMMSS", version)
	}
}

func TestExportExcludesTimingsFromJSON(t *testing.T) {
	conv := NewConversation("demo", "", "m")
	turns := []Turn{
		NewUserTurn("q", ""),
		NewAssistantTurn("a", "", "m", 1.5),
	}

	data, err := Export(conv, turns, "").MarshalIndent()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "ttft") {
		t.Fatal("export leaked ttft")
	}
	if strings.Contains(string(data), "timestamp") {
		t.Fatal("export leaked per-turn timestamps")
	}

	var round Snapshot
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round.ChatName != "demo" || len(round.Messages) != 2 {
		t.Fatalf("round trip: %+v", round)
	}
}

func TestExportToMarkdown(t *testing.T) {
	conv := NewConversation("pipes | and | tables", "Be terse.", "some/model")
	turns := []Turn{
		NewUserTurn("hello", "notes.md"),
		NewAssistantTurn("hi there", "greeting detected", "some/model", 0.1),
		NewErrorTurn("stream interrupted"),
	}

	md := ExportToMarkdown(conv, turns)

	for _, want := range []string{
		"# Chat: pipes \\| and \\| tables",
		"## System Prompt",
		"### User",
		"*Attachment: notes.md*",
		"### Assistant (some/model)",
		"<details><summary>Reasoning</summary>",
		"### Error",
		"stream interrupted",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
