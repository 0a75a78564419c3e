package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// No timeouts anywhere on this client: a queued model may sit a long time
// before first headers, and streams run until the transport completes or
// errors. Cancellation is the request context's job.
var openRouterHTTPClient = &http.Client{}

// RemoteBackend streams chat completions from an OpenRouter-compatible API.
type RemoteBackend struct {
	apiKey   string
	baseURL  string
	appURL   string
	appTitle string
	client   *http.Client
}

// NewRemoteBackend creates a backend against the public OpenRouter endpoint.
// appURL and appTitle populate the optional attribution headers.
func NewRemoteBackend(apiKey, appURL, appTitle string) *RemoteBackend {
	return &RemoteBackend{
		apiKey:   apiKey,
		baseURL:  openRouterBaseURL,
		appURL:   appURL,
		appTitle: appTitle,
		client:   openRouterHTTPClient,
	}
}

// NewRemoteBackendWithBaseURL creates a backend against a custom endpoint.
func NewRemoteBackendWithBaseURL(baseURL, apiKey, appURL, appTitle string) *RemoteBackend {
	b := NewRemoteBackend(apiKey, appURL, appTitle)
	b.baseURL = baseURL
	return b
}

func (b *RemoteBackend) Name() string { return "OpenRouter" }

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []Message     `json:"messages"`
	Stream    bool          `json:"stream"`
	Reasoning reasoningOpts `json:"reasoning"`
}

type reasoningOpts struct {
	Enabled bool   `json:"enabled"`
	Effort  string `json:"effort"`
}

// Stream sends one chat-completions request and normalizes the SSE response.
// A single attempt: no retry or backoff.
func (b *RemoteBackend) Stream(ctx context.Context, req Request) (Stream, error) {
	body, err := json.Marshal(chatRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		Stream:    true,
		Reasoning: reasoningOpts{Enabled: true, Effort: "high"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// The HTTP request is made inside the goroutine so the producer owns
	// resp.Body for its whole lifetime.
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		if b.appURL != "" {
			httpReq.Header.Set("HTTP-Referer", b.appURL)
		}
		if b.appTitle != "" {
			httpReq.Header.Set("X-Title", b.appTitle)
		}

		resp, err := b.client.Do(httpReq)
		if err != nil {
			return &TransportError{Message: fmt.Sprintf("request failed: %v", err), Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return b.readErrorResponse(resp)
		}

		return readSSE(resp.Body, events)
	}), nil
}

// readErrorResponse turns a non-OK response into a TransportError carrying
// the upstream message, or a ProtocolError when the body is not the expected
// {"error":{"message":...}} shape.
func (b *RemoteBackend) readErrorResponse(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Error == nil || parsed.Error.Message == "" {
		return &ProtocolError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	return &TransportError{
		Status:   resp.StatusCode,
		Message:  parsed.Error.Message,
		AuthHint: authHint(parsed.Error.Message),
	}
}
