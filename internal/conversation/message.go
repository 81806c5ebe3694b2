// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/forgedeck/internal/api"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in the conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	// ToolCalls references tool-invocation records by callId. The
	// records themselves live in the tool tracker.
	ToolCalls []string `json:"toolCalls,omitempty"`

	// Streaming state (not persisted). strings.Builder avoids
	// quadratic allocations while deltas arrive.
	Streaming     bool `json:"-"`
	streamContent strings.Builder

	// Stats holds stream timing for assistant messages, set at
	// finalize time.
	Stats *Stats `json:"-"`
}

// Stats records stream timing for one assistant message.
type Stats struct {
	// FirstEvent is the delay between opening the stream and the
	// first event.
	FirstEvent time.Duration
	// Duration is the total stream time.
	Duration time.Duration
	// Deltas is the number of delta events received.
	Deltas int
}

// DeltasPerSec returns the delta arrival rate.
func (s *Stats) DeltasPerSec() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Deltas) / s.Duration.Seconds()
}

func newMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// FromAPI converts a persisted backend message into a store message.
func FromAPI(m api.Message) *Message {
	return &Message{
		ID:        m.ID,
		Role:      Role(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// appendDelta accumulates streamed text. No-op once finalized.
func (m *Message) appendDelta(text string) {
	if m.Streaming {
		m.streamContent.WriteString(text)
	}
}

// finalize merges the streamed content into Content and freezes the body.
func (m *Message) finalize() {
	if !m.Streaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.Streaming = false
}

// DisplayContent returns the body to render, streamed or final. Clones
// carry streamed text flattened into Content, so the builder is only
// consulted when it holds something.
func (m *Message) DisplayContent() string {
	if m.Streaming && m.streamContent.Len() > 0 {
		return m.streamContent.String()
	}
	return m.Content
}

// IsEmpty reports whether the message has no content yet.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// clone returns a copy safe to hand to observers. The stream builder is
// flattened into Content so readers never share mutable state.
func (m *Message) clone() *Message {
	cp := &Message{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.DisplayContent(),
		CreatedAt: m.CreatedAt,
		Streaming: m.Streaming,
		Stats:     m.Stats,
	}
	if len(m.ToolCalls) > 0 {
		cp.ToolCalls = append([]string(nil), m.ToolCalls...)
	}
	return cp
}
