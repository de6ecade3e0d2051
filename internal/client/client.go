// Package client consumes the relay's SSE stream and reassembles the
// incremental chunks into the finished assistant message. The embedded web
// UI performs the same reassembly in the browser; this package is the
// Go-side consumer used by tests and command-line callers.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// FallbackText substitutes for an answer when the stream terminates
// without delivering any text.
const FallbackText = "no response"

// ErrorText is the fixed user-visible failure message shown in place of an
// abandoned in-progress message.
const ErrorText = "Sorry, I encountered an error. Please try again."

// doneSentinel terminates every stream, success or failure.
const doneSentinel = "[DONE]"

// ChatRequest is the request body for both relay endpoints.
type ChatRequest struct {
	InputAsText string         `json:"input_as_text"`
	SessionID   string         `json:"session_id,omitempty"`
	History     []HistoryEntry `json:"history,omitempty"`
}

type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamEvent struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	OutputText string `json:"output_text"`
	Error      string `json:"error"`
}

// Client talks to a running relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Chat calls the blocking endpoint and returns the complete answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		OutputText string `json:"output_text"`
		Error      string `json:"error"`
		Details    string `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Details != "" {
			return "", fmt.Errorf("relay error: %s: %s", body.Error, body.Details)
		}
		return "", fmt.Errorf("relay error: %s", body.Error)
	}
	return body.OutputText, nil
}

// Stream calls the streaming endpoint and reassembles the answer. onUpdate,
// when non-nil, receives the full accumulated text after every chunk (an
// idempotent overwrite of the in-progress message, so repeated renders
// never duplicate text). The returned string is the finished message: the final
// event's text when non-empty, otherwise the chunk concatenation, otherwise
// FallbackText.
func (c *Client) Stream(ctx context.Context, req ChatRequest, onUpdate func(string)) (string, error) {
	resp, err := c.post(ctx, "/api/chat/stream", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return "", fmt.Errorf("relay error: %s", body.Error)
		}
		return "", fmt.Errorf("relay error: status %d", resp.StatusCode)
	}

	var accumulator string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == doneSentinel {
			if accumulator == "" {
				accumulator = FallbackText
			}
			return accumulator, nil
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		switch event.Type {
		case "text_chunk":
			accumulator += event.Text
			if onUpdate != nil {
				onUpdate(accumulator)
			}
		case "final":
			// Authoritative: engine post-processing may differ from
			// naive chunk concatenation.
			if event.OutputText != "" {
				accumulator = event.OutputText
				if onUpdate != nil {
					onUpdate(accumulator)
				}
			}
		case "error":
			return "", fmt.Errorf("stream error: %s", event.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", errors.New("stream ended without terminal sentinel")
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
