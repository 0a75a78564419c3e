package llm

import (
	"context"
	"strings"
	"time"
)

// Role tags a payload message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one {role, content} pair in a request payload.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EventType identifies the kind of a normalized stream event.
type EventType int

const (
	// EventContentDelta carries an incremental fragment of answer text.
	EventContentDelta EventType = iota
	// EventReasoningDelta carries an incremental fragment of intermediate
	// reasoning text, regardless of which wire shape the backend used.
	EventReasoningDelta
	// EventDone terminates a stream that completed normally.
	EventDone
	// EventError terminates a stream that failed. Deltas emitted before the
	// failure remain valid; callers keep partial output.
	EventError
)

// Event is the backend-agnostic unit of incremental response data. Events
// are transient and never persisted.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream is a lazy, finite, non-restartable sequence of events ending in
// exactly one terminal event. Recv returns io.EOF after the terminal event.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// GenParams are generation parameters for the embedded backend. The remote
// API applies its own defaults.
type GenParams struct {
	Temperature float64
	MaxTokens   int
}

// Request is one fully-built inference request.
type Request struct {
	Model    string
	Messages []Message
	Params   GenParams
}

// Backend produces a response stream for a request.
type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Result is the finalized output of one inference session.
type Result struct {
	Text          string
	ReasoningText string
	TTFT          time.Duration
}

// ModelKind distinguishes where a model runs.
type ModelKind int

const (
	ModelRemote ModelKind = iota
	ModelEmbedded
)

// localModelPrefix is the reserved marker for models that run in-process.
const localModelPrefix = "local/"

// ModelRef is a resolved model reference. Parsing happens once at selection
// time so call sites switch on Kind instead of re-matching strings.
type ModelRef struct {
	Kind ModelKind
	ID   string
}

// ParseModelRef resolves a model identifier into a tagged reference.
func ParseModelRef(model string) ModelRef {
	if id, ok := strings.CutPrefix(model, localModelPrefix); ok {
		return ModelRef{Kind: ModelEmbedded, ID: id}
	}
	return ModelRef{Kind: ModelRemote, ID: model}
}

// String returns the identifier in its selectable form, including the local
// marker for embedded models.
func (r ModelRef) String() string {
	if r.Kind == ModelEmbedded {
		return localModelPrefix + r.ID
	}
	return r.ID
}
