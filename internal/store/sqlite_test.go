package store

import (
	"path/filepath"
	"testing"

	"github.com/karenos/fusion-chat/internal/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "chats.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationRoundTrip(t *testing.T) {
	s := newTestStore(t)

	conv := chat.NewConversation("demo", "Be terse.", "some/model")
	if err := s.SaveConversation(conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	turns := []chat.Turn{
		chat.NewUserTurn("hello", "data.json"),
		chat.NewAssistantTurn("hi", "greeting", "some/model", 0.3),
	}
	if err := s.AppendTurns(conv.ID, 0, turns...); err != nil {
		t.Fatalf("append: %v", err)
	}

	loaded, err := s.Load(conv.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "demo" || loaded.SystemPrompt != "Be terse." || loaded.ActiveModel != "some/model" {
		t.Fatalf("metadata mismatch: %+v", loaded)
	}

	got := chat.NewLog(loaded).Turns()
	if len(got) != 2 {
		t.Fatalf("turns=%d, want 2", len(got))
	}
	if got[0].Role != chat.RoleUser || got[0].Content != "hello" || got[0].Attachment != "data.json" {
		t.Fatalf("user turn: %+v", got[0])
	}
	if got[1].Role != chat.RoleAssistant || got[1].Reasoning != "greeting" || got[1].TTFT != 0.3 {
		t.Fatalf("assistant turn: %+v", got[1])
	}
}

func TestSaveConversationUpserts(t *testing.T) {
	s := newTestStore(t)

	conv := chat.NewConversation("before", "", "model/a")
	if err := s.SaveConversation(conv); err != nil {
		t.Fatalf("save: %v", err)
	}
	conv.Name = "after"
	conv.ActiveModel = "model/b"
	if err := s.SaveConversation(conv); err != nil {
		t.Fatalf("resave: %v", err)
	}

	loaded, err := s.Load(conv.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "after" || loaded.ActiveModel != "model/b" {
		t.Fatalf("upsert did not apply: %+v", loaded)
	}

	infos, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("upsert created a duplicate row: %d conversations", len(infos))
	}
}

func TestTruncateFromMirrorsLog(t *testing.T) {
	s := newTestStore(t)

	conv := chat.NewConversation("demo", "", "m")
	if err := s.SaveConversation(conv); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.AppendTurns(conv.ID, 0,
		chat.NewUserTurn("first", ""),
		chat.NewAssistantTurn("one", "", "m", 0),
		chat.NewUserTurn("second", ""),
		chat.NewAssistantTurn("two", "", "m", 0),
	); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.TruncateFrom(conv.ID, 2); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	loaded, err := s.Load(conv.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := chat.NewLog(loaded).Turns()
	if len(got) != 2 {
		t.Fatalf("turns=%d after truncate, want 2", len(got))
	}
	if got[1].Content != "one" {
		t.Fatalf("wrong survivors: %+v", got)
	}

	if err := s.TruncateFrom(conv.ID, -1); err == nil {
		t.Fatal("negative sequence accepted")
	}
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)

	first := chat.NewConversation("first", "", "m")
	second := chat.NewConversation("second", "", "m")
	for _, conv := range []*chat.Conversation{first, second} {
		if err := s.SaveConversation(conv); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := s.AppendTurns(first.ID, 0, chat.NewUserTurn("q", ""), chat.NewAssistantTurn("a", "", "m", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	infos, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("conversations=%d, want 2", len(infos))
	}
	counts := map[string]int{}
	for _, info := range infos {
		counts[info.Name] = info.TurnCount
	}
	if counts["first"] != 2 || counts["second"] != 0 {
		t.Fatalf("turn counts: %v", counts)
	}

	if err := s.Delete(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(first.ID); err == nil {
		t.Fatal("deleted conversation still loads")
	}

	infos, err = s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "second" {
		t.Fatalf("after delete: %+v", infos)
	}
}
