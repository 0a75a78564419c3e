package llm

import (
	"fmt"
	"strings"
)

// TransportError is a network or HTTP failure before or during streaming.
// The upstream message is surfaced as-is; AuthHint carries advisory
// remediation text when the message matches a known credential failure.
type TransportError struct {
	Status   int // HTTP status, 0 if the request never completed
	Message  string
	AuthHint string
	Err      error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.AuthHint != "" {
		return msg + "\n\n" + e.AuthHint
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a fatally unparseable response, such as a non-OK status
// with a body that is not the expected error shape. Per-frame SSE damage is
// not a ProtocolError; malformed frames are skipped and the stream continues.
type ProtocolError struct {
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response (status %d): %s", e.Status, e.Body)
}

// CapacityError is a user-visible refusal to send; the conversation is left
// untouched.
type CapacityError struct {
	Pairs    int
	MaxPairs int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("this chat has reached the maximum of %d message pairs; start a new chat", e.MaxPairs)
}

// ValidationError refuses a send before any network or engine call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// EngineInitError is a failure to load the embedded engine. It is distinct
// from inference errors because it can occur before any message is sent.
type EngineInitError struct {
	Err error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("embedded engine failed to load: %v", e.Err)
}

func (e *EngineInitError) Unwrap() error { return e.Err }

// authHintText is appended to credential failures so the user knows where to
// re-enter the key.
const authHintText = "Hint: set your OpenRouter API key with `fusion-chat config set-key` or the OPENROUTER_API_KEY environment variable."

// authFailurePhrases are the upstream messages that indicate a bad or missing
// credential. Matching is advisory only; the error kind stays the same.
var authFailurePhrases = []string{
	"user not found",
	"unauthorized",
	"invalid api key",
}

// authHint returns remediation text when the message pattern-matches a
// credential failure, or "".
func authHint(message string) string {
	lower := strings.ToLower(message)
	for _, phrase := range authFailurePhrases {
		if strings.Contains(lower, phrase) {
			return authHintText
		}
	}
	return ""
}
