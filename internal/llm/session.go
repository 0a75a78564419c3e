package llm

import (
	"context"
	"io"
	"strings"
	"time"
)

// RunSession drives one request/response cycle against a backend: dispatch,
// consume the normalized stream, and return the finalized result.
//
// TTFT is frozen at the first content or reasoning delta, whichever arrives
// first; if no delta ever arrives it is the elapsed time at termination.
//
// On failure the partial result accumulated so far is returned alongside the
// error, so callers can keep already-streamed text.
//
// At most one session may be active per conversation; enforcing that is the
// caller's responsibility.
func RunSession(ctx context.Context, backend Backend, req Request) (Result, error) {
	return RunSessionWithDeltas(ctx, backend, req, nil)
}

// RunSessionWithDeltas is RunSession with a per-delta callback for
// incremental display. onDelta may be nil; it receives only content and
// reasoning deltas.
func RunSessionWithDeltas(ctx context.Context, backend Backend, req Request, onDelta func(Event)) (Result, error) {
	start := time.Now()

	stream, err := backend.Stream(ctx, req)
	if err != nil {
		return Result{TTFT: time.Since(start)}, annotateError(err)
	}
	defer stream.Close()

	var text, reasoning strings.Builder
	var ttft time.Duration
	gotFirst := false

	markFirst := func() {
		if !gotFirst {
			gotFirst = true
			ttft = time.Since(start)
		}
	}
	result := func() Result {
		if !gotFirst {
			ttft = time.Since(start)
		}
		return Result{
			Text:          text.String(),
			ReasoningText: reasoning.String(),
			TTFT:          ttft,
		}
	}

	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return result(), nil
		}
		if err != nil {
			return result(), annotateError(err)
		}

		switch event.Type {
		case EventContentDelta:
			markFirst()
			text.WriteString(event.Text)
			if onDelta != nil {
				onDelta(event)
			}
		case EventReasoningDelta:
			markFirst()
			reasoning.WriteString(event.Text)
			if onDelta != nil {
				onDelta(event)
			}
		case EventDone:
			return result(), nil
		case EventError:
			return result(), annotateError(event.Err)
		}
	}
}

// annotateError attaches the credential-remediation hint to transport
// failures whose message matches a known auth failure. The hint is advisory
// text, not a distinct error kind.
func annotateError(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *TransportError:
		if e.AuthHint == "" {
			e.AuthHint = authHint(e.Message)
		}
		return e
	case *ProtocolError, *EngineInitError, *ValidationError:
		return err
	}
	if hint := authHint(err.Error()); hint != "" {
		return &TransportError{Message: err.Error(), AuthHint: hint, Err: err}
	}
	return err
}
