package chat

import (
	"errors"
	"testing"
)

func newTestLog(t *testing.T, pairs ...[2]string) *Log {
	t.Helper()
	log := NewLog(NewConversation("test", "Be terse.", "some/model"))
	for _, pair := range pairs {
		if err := log.AppendPair(
			NewUserTurn(pair[0], ""),
			NewAssistantTurn(pair[1], "", "some/model", 0.1),
		); err != nil {
			t.Fatalf("append pair: %v", err)
		}
	}
	return log
}

func TestAppendPairKeepsLengthEven(t *testing.T) {
	log := newTestLog(t)
	for i := 0; i < 5; i++ {
		if err := log.AppendPair(NewUserTurn("q", ""), NewAssistantTurn("a", "", "m", 0)); err != nil {
			t.Fatalf("append: %v", err)
		}
		if log.Len()%2 != 0 {
			t.Fatalf("length %d is odd after AppendPair", log.Len())
		}
	}
	if log.PairCount() != 5 {
		t.Fatalf("PairCount=%d, want 5", log.PairCount())
	}
}

func TestAppendPairValidatesRoles(t *testing.T) {
	log := newTestLog(t)
	if err := log.AppendPair(NewAssistantTurn("a", "", "m", 0), NewAssistantTurn("a", "", "m", 0)); err == nil {
		t.Fatal("accepted pair with assistant in user position")
	}
	if err := log.AppendPair(NewUserTurn("q", ""), NewUserTurn("q", "")); err == nil {
		t.Fatal("accepted pair with user in assistant position")
	}
	if log.Len() != 0 {
		t.Fatalf("rejected append mutated the log: len=%d", log.Len())
	}
}

func TestTruncateFromThenTurnAt(t *testing.T) {
	tests := []struct {
		name       string
		pairs      int
		truncateAt int
	}{
		{name: "truncate mid", pairs: 3, truncateAt: 2},
		{name: "truncate start", pairs: 3, truncateAt: 0},
		{name: "truncate last turn", pairs: 2, truncateAt: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := newTestLog(t)
			for i := 0; i < tc.pairs; i++ {
				if err := log.AppendPair(NewUserTurn("q", ""), NewAssistantTurn("a", "", "m", 0)); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			if err := log.TruncateFrom(tc.truncateAt); err != nil {
				t.Fatalf("truncate: %v", err)
			}
			if _, err := log.TurnAt(tc.truncateAt); !errors.Is(err, ErrTurnNotFound) {
				t.Fatalf("TurnAt(%d) after truncate: err=%v, want ErrTurnNotFound", tc.truncateAt, err)
			}
			if log.Len() != tc.truncateAt {
				t.Fatalf("len=%d, want %d", log.Len(), tc.truncateAt)
			}
		})
	}
}

func TestTruncateFromPastEndIsNoop(t *testing.T) {
	log := newTestLog(t, [2]string{"q", "a"})
	if err := log.TruncateFrom(10); err != nil {
		t.Fatalf("truncate past end: %v", err)
	}
	if log.Len() != 2 {
		t.Fatalf("len=%d, want 2", log.Len())
	}
}

func TestTruncateFromNegativeIndexFailsLoudly(t *testing.T) {
	log := newTestLog(t, [2]string{"q", "a"})
	if err := log.TruncateFrom(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err=%v, want ErrIndexOutOfRange", err)
	}
}

func TestRegenerateEquivalence(t *testing.T) {
	// Regenerate on the user turn at i must leave the conversation
	// content-equal to one where the captured text was the only input at i.
	log := newTestLog(t,
		[2]string{"first", "answer one"},
		[2]string{"second", "answer two"},
	)

	captured, err := log.Regenerate(2)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if captured != "second" {
		t.Fatalf("captured=%q, want %q", captured, "second")
	}
	if log.Len() != 2 {
		t.Fatalf("len=%d after regenerate truncation, want 2", log.Len())
	}

	// Re-issue the send with the captured text.
	if err := log.AppendPair(NewUserTurn(captured, ""), NewAssistantTurn("answer two redux", "", "m", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	want := []string{"first", "answer one", "second", "answer two redux"}
	turns := log.Turns()
	if len(turns) != len(want) {
		t.Fatalf("len=%d, want %d", len(turns), len(want))
	}
	for i, content := range want {
		if turns[i].Content != content {
			t.Fatalf("turn %d content=%q, want %q", i, turns[i].Content, content)
		}
	}
}

func TestRegenerateRejectsNonUserAnchor(t *testing.T) {
	log := newTestLog(t, [2]string{"q", "a"})

	if _, err := log.Regenerate(1); err == nil {
		t.Fatal("regenerate anchored on an assistant turn was accepted")
	}
	if log.Len() != 2 {
		t.Fatalf("rejected regenerate mutated the log: len=%d", log.Len())
	}

	if _, err := log.Regenerate(5); !errors.Is(err, ErrTurnNotFound) {
		t.Fatalf("err=%v, want ErrTurnNotFound", err)
	}
	if _, err := log.Regenerate(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err=%v, want ErrIndexOutOfRange", err)
	}
}

func TestDeleteFrom(t *testing.T) {
	log := newTestLog(t,
		[2]string{"keep", "kept"},
		[2]string{"drop", "dropped"},
	)

	if err := log.DeleteFrom(2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if log.Len() != 2 {
		t.Fatalf("len=%d, want 2", log.Len())
	}
	if err := log.DeleteFrom(1); err == nil {
		t.Fatal("delete anchored on an assistant turn was accepted")
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	log := newTestLog(t, [2]string{"q", "a"})
	turns := log.Turns()
	turns[0].Content = "mutated"
	fresh, err := log.TurnAt(0)
	if err != nil {
		t.Fatalf("turn at 0: %v", err)
	}
	if fresh.Content != "q" {
		t.Fatal("Turns() exposed internal storage")
	}
}
