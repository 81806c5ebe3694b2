// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/forgedeck/internal/credentials"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the platform client.
type ClientConfig struct {
	// BaseURL is the platform API base URL.
	BaseURL string

	// Timeout for non-streaming requests (default: 30s).
	Timeout time.Duration

	// MaxRetries for transient failures on read-only requests (default: 3).
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff (default: 500ms).
	RetryDelay time.Duration
}

// MaxResponseSize caps REST response bodies to keep a misbehaving
// backend from exhausting memory.
const MaxResponseSize = 10 * 1024 * 1024

func (c *ClientConfig) fillDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client communicates with the platform backend. It is safe for
// concurrent use.
type Client struct {
	config ClientConfig
	creds  credentials.Store

	httpClient *http.Client
	// streamClient has no timeout; stream lifetime is context-controlled.
	streamClient *http.Client
}

// NewClient creates a platform client reading its bearer token from creds.
func NewClient(config ClientConfig, creds credentials.Store) *Client {
	config.fillDefaults()
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &Client{
		config:       config,
		creds:        creds,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
	}
}

// token reads the bearer token from the credential store.
func (c *Client) token() (string, error) {
	tok, err := c.creds.Get(credentials.TokenKey)
	if err != nil || strings.TrimSpace(tok) == "" {
		return "", &Error{Kind: KindAuth, Message: "no platform token configured", Cause: err}
	}
	return tok, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", "forgedeck/0.1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// ListConversations returns conversation summaries, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.getJSON(ctx, "/api/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadConversation returns the full conversation for id.
func (c *Client) LoadConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := c.getJSON(ctx, "/api/conversations/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes the conversation from the server.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/conversations/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return mapStatusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ListApps returns the user's applications for the app-context selector.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	var out []App
	if err := c.getJSON(ctx, "/api/apps", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs a GET with retry on transient failures and decodes
// the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return mapTransportError(ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}

		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = mapTransportError(err)
			if errors.Is(lastErr, ErrTimeout) && ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &Error{Kind: KindNetwork, Message: "server error: " + resp.Status}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return mapStatusError(resp)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		if err != nil {
			return &Error{Kind: KindNetwork, Message: "failed to read response", Cause: err}
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &Error{Kind: KindNetwork, Message: "failed to decode response", Cause: err}
		}
		return nil
	}

	return lastErr
}

// backoff returns the exponential delay before retry attempt n.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryDelay * time.Duration(1<<uint(attempt-1))
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// =============================================================================
// STREAMING
// =============================================================================

// sendBody is the turn submission payload.
type sendBody struct {
	Text       string `json:"text"`
	AppContext string `json:"appContext,omitempty"`
}

// OpenStream submits a turn and returns the event stream. conversationID
// is empty for a fresh conversation. The stream terminates when the
// server closes it or ctx is cancelled; it is finite and not restartable.
func (c *Client) OpenStream(ctx context.Context, conversationID, text, appContext string) (*Stream, error) {
	body, err := json.Marshal(sendBody{Text: text, AppContext: appContext})
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "failed to encode turn", Cause: err}
	}

	path := "/api/conversations/messages"
	if conversationID != "" {
		path = "/api/conversations/" + conversationID + "/messages"
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, mapStatusError(resp)
	}

	return newStream(resp.Body), nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// mapTransportError classifies request-level failures.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Message: "request cancelled", Cause: err}
	}
	return &Error{Kind: KindNetwork, Message: "request failed", Cause: err}
}

// mapStatusError converts a non-2xx response into a typed error,
// consuming the body for the server's detail string.
func mapStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))

	detail := strings.TrimSpace(string(body))
	code := ""
	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		detail = envelope.Error.Message
		code = envelope.Error.Code
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuth, Message: orDefault(detail, "authentication required")}
	case resp.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Message: orDefault(detail, "not found")}
	case code == "app_context" || resp.StatusCode == http.StatusConflict:
		return &Error{Kind: KindAppContext, Message: orDefault(detail, "app context unavailable")}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidation, Message: orDefault(detail, "invalid request")}
	default:
		return &Error{Kind: KindNetwork, Message: "unexpected status " + resp.Status + ": " + detail}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
