package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// sseFrame is one decoded `data:` payload from a chat-completions stream.
type sseFrame struct {
	Choices []sseChoice `json:"choices"`
	Error   *apiError   `json:"error"`
}

type sseChoice struct {
	Delta sseDelta `json:"delta"`
}

// sseDelta carries the heterogeneous incremental fields backends put on
// choices[0].delta. Content is plain answer text; Reasoning (shape A, a bare
// string) and ReasoningDetails (shape B, typed fragments) are the two
// reasoning wire shapes. Both may appear in the same stream.
type sseDelta struct {
	Content          string            `json:"content"`
	Reasoning        string            `json:"reasoning"`
	ReasoningDetails []reasoningDetail `json:"reasoning_details"`
}

type reasoningDetail struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Message string `json:"message"`
}

// reasoningTextType marks a shape-B fragment as reasoning text.
const reasoningTextType = "reasoning.text"

// reasoningAdapter extracts reasoning text fragments from one wire shape.
// The set is closed: a new backend shape means a new adapter here, not an
// if-chain at the call site.
type reasoningAdapter func(d sseDelta) []string

var reasoningAdapters = []reasoningAdapter{
	reasoningStringShape,
	reasoningDetailShape,
}

// reasoningStringShape handles shape A: a string field directly on the delta.
func reasoningStringShape(d sseDelta) []string {
	if d.Reasoning == "" {
		return nil
	}
	return []string{d.Reasoning}
}

// reasoningDetailShape handles shape B: an array of typed fragments, emitted
// in array order.
func reasoningDetailShape(d sseDelta) []string {
	var fragments []string
	for _, detail := range d.ReasoningDetails {
		if detail.Type == reasoningTextType && detail.Text != "" {
			fragments = append(fragments, detail.Text)
		}
	}
	return fragments
}

// readSSE consumes a server-sent-event body and emits normalized events.
// Each `data:` frame is decoded independently; malformed JSON is skipped
// without aborting the stream. A literal [DONE] sentinel or connection close
// both terminate with Done. A mid-stream error frame or transport failure
// returns an error; deltas already emitted stay with the caller.
func readSSE(body io.Reader, events chan<- Event) error {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			events <- Event{Type: EventDone}
			return nil
		}

		var frame sseFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			// Malformed frames (keepalives, partial data) are dropped on
			// purpose; the stream keeps going.
			continue
		}

		if frame.Error != nil {
			return &TransportError{
				Message:  frame.Error.Message,
				AuthHint: authHint(frame.Error.Message),
			}
		}

		for _, choice := range frame.Choices {
			emitDelta(choice.Delta, events)
		}
	}

	if err := scanner.Err(); err != nil {
		return &TransportError{Message: fmt.Sprintf("streaming failed: %v", err), Err: err}
	}

	events <- Event{Type: EventDone}
	return nil
}

// emitDelta converts one delta object into normalized events: reasoning
// fragments first (matching upstream emission order), then content.
func emitDelta(delta sseDelta, events chan<- Event) {
	for _, adapter := range reasoningAdapters {
		for _, fragment := range adapter(delta) {
			events <- Event{Type: EventReasoningDelta, Text: fragment}
		}
	}
	if delta.Content != "" {
		events <- Event{Type: EventContentDelta, Text: delta.Content}
	}
}
