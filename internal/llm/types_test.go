package llm

import (
	"testing"
)

func TestParseModelRef(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind ModelKind
		wantID   string
	}{
		{name: "remote model", input: "qwen/qwen3-235b-a22b-2507", wantKind: ModelRemote, wantID: "qwen/qwen3-235b-a22b-2507"},
		{name: "embedded model", input: "local/qwen3-0.6b", wantKind: ModelEmbedded, wantID: "qwen3-0.6b"},
		{name: "marker only once", input: "local/local/x", wantKind: ModelEmbedded, wantID: "local/x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref := ParseModelRef(tc.input)
			if ref.Kind != tc.wantKind {
				t.Fatalf("kind=%v, want %v", ref.Kind, tc.wantKind)
			}
			if ref.ID != tc.wantID {
				t.Fatalf("id=%q, want %q", ref.ID, tc.wantID)
			}
			if ref.String() != tc.input {
				t.Fatalf("String()=%q, want round-trip %q", ref.String(), tc.input)
			}
		})
	}
}
