package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Context-length tiers. Models below the cutoff get the short conversation
// cap; models at or above it (and models with no published context length)
// get the long one.
const (
	contextLengthCutoff = 100_000
	lowTierMaxPairs     = 25
	highTierMaxPairs    = 50
)

// Display thresholds as percentages of MaxPairs. Presentation only; the hard
// limit is MaxPairs.
const (
	warnThresholdPct   = 70
	dangerThresholdPct = 80
)

// CapacityState is derived per send, never stored.
type CapacityState struct {
	Pairs    int
	MaxPairs int
	WarnAt   int
	DangerAt int
}

// MaxPairs returns the allowed number of message pairs for a model. meta may
// be nil (unknown model); absence of context-length metadata defaults to the
// high-capacity tier.
func MaxPairs(meta *ModelMeta) int {
	if meta == nil || meta.ContextLength == 0 {
		return highTierMaxPairs
	}
	if meta.ContextLength < contextLengthCutoff {
		return lowTierMaxPairs
	}
	return highTierMaxPairs
}

// IsAllowed reports whether a new send is permitted for a conversation with
// messageCount turns. Once false, callers must refuse the send and must not
// truncate or otherwise auto-remediate.
func IsAllowed(messageCount int, meta *ModelMeta) bool {
	return messageCount/2 < MaxPairs(meta)
}

// Capacity derives the full capacity state for display.
func Capacity(messageCount int, meta *ModelMeta) CapacityState {
	max := MaxPairs(meta)
	return CapacityState{
		Pairs:    messageCount / 2,
		MaxPairs: max,
		WarnAt:   max * warnThresholdPct / 100,
		DangerAt: max * dangerThresholdPct / 100,
	}
}

// CheckCapacity returns a CapacityError when the conversation is full.
func CheckCapacity(messageCount int, meta *ModelMeta) error {
	if IsAllowed(messageCount, meta) {
		return nil
	}
	return &CapacityError{Pairs: messageCount / 2, MaxPairs: MaxPairs(meta)}
}

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text for context display.
// Uses the cl100k_base encoding when available, falling back to the usual
// four-characters-per-token heuristic when the encoding cannot be loaded
// (offline first run).
func EstimateTokens(text string) int {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenizer = enc
		}
	})
	if tokenizer != nil {
		return len(tokenizer.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// FormatTokenCount returns a human-readable string for a context length
// (e.g. "128K", "1M"). Returns "" for zero or negative values.
func FormatTokenCount(tokens int) string {
	if tokens <= 0 {
		return ""
	}
	if tokens >= 1_000_000 {
		rounded := (tokens + 50_000) / 100_000
		if rounded%10 == 0 {
			return fmt.Sprintf("%dM", rounded/10)
		}
		return fmt.Sprintf("%.1fM", float64(rounded)/10)
	}
	k := (tokens + 500) / 1_000
	return fmt.Sprintf("%dK", k)
}
