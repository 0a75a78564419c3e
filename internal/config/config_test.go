package config

import (
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")

	saved := &Config{
		APIKey:       "sk-or-v1-abc",
		Model:        "qwen/qwen3-235b-a22b-2507",
		AppURL:       "https://example.com",
		AppTitle:     "Fusion Studio",
		SystemPrompt: "Be terse.\nCite sources.",
		Embedded: EmbeddedConfig{
			ModulePath:  "/models/tiny.wasm",
			Temperature: 0.5,
			MaxTokens:   256,
		},
	}
	if err := Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.SystemPrompt != saved.SystemPrompt {
		t.Fatalf("SystemPrompt=%q after Save/Load round trip, want %q", loaded.SystemPrompt, saved.SystemPrompt)
	}
	if loaded.AppURL != saved.AppURL {
		t.Fatalf("AppURL=%q after Save/Load round trip, want %q", loaded.AppURL, saved.AppURL)
	}
	if loaded.APIKey != saved.APIKey {
		t.Fatalf("APIKey=%q, want %q", loaded.APIKey, saved.APIKey)
	}
	if loaded.Model != saved.Model {
		t.Fatalf("Model=%q, want %q", loaded.Model, saved.Model)
	}
	if loaded.AppTitle != saved.AppTitle {
		t.Fatalf("AppTitle=%q, want %q", loaded.AppTitle, saved.AppTitle)
	}
	if loaded.Embedded != saved.Embedded {
		t.Fatalf("Embedded=%+v, want %+v", loaded.Embedded, saved.Embedded)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FUSION_TEST_KEY", "sk-or-secret")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "braced", in: "${FUSION_TEST_KEY}", want: "sk-or-secret"},
		{name: "bare", in: "$FUSION_TEST_KEY", want: "sk-or-secret"},
		{name: "literal", in: "sk-or-v1-abc", want: "sk-or-v1-abc"},
		{name: "unset braced", in: "${FUSION_TEST_UNSET}", want: ""},
		{name: "empty", in: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := expandEnv(tc.in); got != tc.want {
				t.Errorf("expandEnv(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
