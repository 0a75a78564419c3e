package llm

import (
	"context"
	"errors"
	"testing"
)

// fakeBackend replays a scripted event sequence.
type fakeBackend struct {
	events   []Event
	startErr error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Stream(ctx context.Context, req Request) (Stream, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		for _, event := range f.events {
			if event.Type == EventError {
				return event.Err
			}
			events <- event
		}
		return nil
	}), nil
}

func TestRunSessionAccumulates(t *testing.T) {
	backend := &fakeBackend{events: []Event{
		{Type: EventReasoningDelta, Text: "thinking "},
		{Type: EventContentDelta, Text: "Hello"},
		{Type: EventReasoningDelta, Text: "more"},
		{Type: EventContentDelta, Text: ", world"},
		{Type: EventDone},
	}}

	result, err := RunSession(context.Background(), backend, Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Hello, world" {
		t.Fatalf("text=%q, want %q", result.Text, "Hello, world")
	}
	if result.ReasoningText != "thinking more" {
		t.Fatalf("reasoning=%q, want %q", result.ReasoningText, "thinking more")
	}
	if result.TTFT <= 0 {
		t.Fatalf("ttft=%v, want > 0", result.TTFT)
	}
}

func TestRunSessionEmptyStream(t *testing.T) {
	// A stream whose only event is Done: empty result, ttft is the elapsed
	// time at termination, no crash.
	backend := &fakeBackend{events: []Event{{Type: EventDone}}}

	result, err := RunSession(context.Background(), backend, Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "" || result.ReasoningText != "" {
		t.Fatalf("result=%+v, want empty text and reasoning", result)
	}
	if result.TTFT <= 0 {
		t.Fatalf("ttft=%v, want elapsed time at termination", result.TTFT)
	}
}

func TestRunSessionPartialRetainedOnError(t *testing.T) {
	backend := &fakeBackend{events: []Event{
		{Type: EventContentDelta, Text: "partial answer"},
		{Type: EventError, Err: errors.New("connection reset")},
	}}

	result, err := RunSession(context.Background(), backend, Request{Model: "m"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if result.Text != "partial answer" {
		t.Fatalf("text=%q, want partial output retained", result.Text)
	}
}

func TestRunSessionAuthHintAnnotation(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantHint bool
	}{
		{name: "user not found", message: "User not found.", wantHint: true},
		{name: "unauthorized", message: "401 Unauthorized", wantHint: true},
		{name: "invalid key", message: "Invalid API key provided", wantHint: true},
		{name: "unrelated failure", message: "model is overloaded", wantHint: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{events: []Event{
				{Type: EventError, Err: errors.New(tc.message)},
			}}
			_, err := RunSession(context.Background(), backend, Request{Model: "m"})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var transportErr *TransportError
			hinted := errors.As(err, &transportErr) && transportErr.AuthHint != ""
			if hinted != tc.wantHint {
				t.Fatalf("hinted=%v, want %v (err: %v)", hinted, tc.wantHint, err)
			}
		})
	}
}

func TestRunSessionDispatchFailure(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("dial tcp: no route to host")}

	result, err := RunSession(context.Background(), backend, Request{Model: "m"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if result.Text != "" {
		t.Fatalf("text=%q, want empty", result.Text)
	}
}

func TestRunSessionDeltaCallback(t *testing.T) {
	backend := &fakeBackend{events: []Event{
		{Type: EventContentDelta, Text: "a"},
		{Type: EventReasoningDelta, Text: "r"},
		{Type: EventContentDelta, Text: "b"},
		{Type: EventDone},
	}}

	var got []Event
	_, err := RunSessionWithDeltas(context.Background(), backend, Request{Model: "m"}, func(event Event) {
		got = append(got, event)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("callback saw %d events, want 3", len(got))
	}
	if got[0].Text != "a" || got[1].Text != "r" || got[2].Text != "b" {
		t.Fatalf("callback order wrong: %+v", got)
	}
}
