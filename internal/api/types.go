// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "time"

// =============================================================================
// REST TYPES
// =============================================================================

// ConversationSummary is one catalog entry, as listed by the backend.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"lastActivity"`
}

// Message is a persisted conversation message as returned by the backend.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is the full conversation payload.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	AppID     string    `json:"appId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// App is one managed application, used to populate the app-context selector.
type App struct {
	ID            string `json:"appId"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	DeploymentURL string `json:"deploymentUrl,omitempty"`
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventKind tags a stream event variant.
type EventKind string

const (
	EventDelta               EventKind = "delta"
	EventToolStart           EventKind = "tool_start"
	EventToolResult          EventKind = "tool_result"
	EventAssistantComplete   EventKind = "assistant_complete"
	EventConversationCreated EventKind = "conversation_created"
	EventError               EventKind = "error"
)

// Event is one tagged message delivered from server to client during a
// turn. Only the fields relevant to the kind are populated.
type Event struct {
	Kind EventKind

	// EventDelta
	Text string

	// EventToolStart / EventToolResult
	CallID  string
	Tool    string
	Input   map[string]any
	Success bool
	Payload map[string]any

	// EventAssistantComplete
	MessageID string

	// EventConversationCreated
	ConversationID string
	Title          string

	// EventError
	Code    string
	Message string
}

// wireEvent is the JSON envelope: one object per line. Fields not
// listed here are reserved and ignored.
type wireEvent struct {
	Kind           string         `json:"kind"`
	Text           string         `json:"text,omitempty"`
	CallID         string         `json:"callId,omitempty"`
	Tool           string         `json:"tool,omitempty"`
	Input          map[string]any `json:"input,omitempty"`
	Success        *bool          `json:"success,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	MessageID      string         `json:"messageId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	Title          string         `json:"title,omitempty"`
	Code           string         `json:"code,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// apiErrorBody is the error envelope on non-2xx REST responses.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
