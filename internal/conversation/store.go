// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"sync"
)

// ErrUserPending is returned by AppendUser when a user message is
// already waiting for an assistant reply.
var ErrUserPending = errors.New("conversation: user message already pending")

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// ChangeKind tags a store change notification.
type ChangeKind int

const (
	ChangeAppend ChangeKind = iota
	ChangeDelta
	ChangeToolAttached
	ChangeFinalized
	ChangeRollback
	ChangeReplaced
)

// Change describes one store mutation for subscribers. Delta carries
// the appended text for ChangeDelta notifications.
type Change struct {
	Kind      ChangeKind
	MessageID string
	Delta     string
}

// =============================================================================
// STORE
// =============================================================================

// Store is the authoritative in-memory model of the active conversation.
// It is safe for concurrent use; subscribers are invoked outside the
// lock, in mutation order.
type Store struct {
	mu       sync.Mutex
	messages []*Message

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(Change))}
}

// Subscribe registers a change callback and returns an unsubscribe
// function. Callbacks run synchronously after each mutation.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(ch Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AppendUser appends a user message. It fails with ErrUserPending when
// the previous user message has not received an assistant reply yet.
func (s *Store) AppendUser(text string) (*Message, error) {
	s.mu.Lock()
	if last := s.lastNonSystem(); last != nil && last.Role == RoleUser {
		s.mu.Unlock()
		return nil, ErrUserPending
	}

	msg := newMessage(RoleUser, text)
	s.messages = append(s.messages, msg)
	cp := msg.clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAppend, MessageID: msg.ID})
	return cp, nil
}

// AppendSystem appends a system notice. System messages may interleave
// anywhere; they never affect role alternation.
func (s *Store) AppendSystem(text string) *Message {
	s.mu.Lock()
	msg := newMessage(RoleSystem, text)
	s.messages = append(s.messages, msg)
	cp := msg.clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAppend, MessageID: msg.ID})
	return cp
}

// BeginAssistant inserts an empty streaming assistant message and
// returns its identifier.
func (s *Store) BeginAssistant() string {
	s.mu.Lock()
	msg := newMessage(RoleAssistant, "")
	msg.Streaming = true
	s.messages = append(s.messages, msg)
	id := msg.ID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAppend, MessageID: id})
	return id
}

// ApplyDelta appends text to the named streaming assistant message.
// No-op for unknown ids: late events after a cancel are dropped here.
func (s *Store) ApplyDelta(id, text string) {
	s.mu.Lock()
	msg := s.byID(id)
	if msg == nil || !msg.Streaming {
		s.mu.Unlock()
		return
	}
	msg.appendDelta(text)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDelta, MessageID: id, Delta: text})
}

// AttachTool records that a tool call belongs to an assistant message.
func (s *Store) AttachTool(messageID, callID string) {
	s.mu.Lock()
	msg := s.byID(messageID)
	if msg == nil {
		s.mu.Unlock()
		return
	}
	msg.ToolCalls = append(msg.ToolCalls, callID)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeToolAttached, MessageID: messageID})
}

// FinalizeAssistant completes the streaming assistant message. When
// serverID is non-empty the client id is replaced with it; tool
// attachments survive the rename because they live on the message.
// stats may be nil.
func (s *Store) FinalizeAssistant(id, serverID string, stats *Stats) {
	s.mu.Lock()
	msg := s.byID(id)
	if msg == nil || !msg.Streaming {
		s.mu.Unlock()
		return
	}
	msg.finalize()
	msg.Stats = stats
	if serverID != "" && serverID != id {
		msg.ID = serverID
	}
	finalID := msg.ID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeFinalized, MessageID: finalID})
}

// RollbackPending removes the in-flight assistant message and, when
// dropUser is set, the originating user message as well. Used on error
// and on cancel.
func (s *Store) RollbackPending(dropUser bool) {
	s.mu.Lock()
	removed := false
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleAssistant && s.messages[i].Streaming {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			removed = true
			break
		}
	}
	if dropUser {
		for i := len(s.messages) - 1; i >= 0; i-- {
			if s.messages[i].Role == RoleUser {
				s.messages = append(s.messages[:i], s.messages[i+1:]...)
				removed = true
				break
			}
		}
	}
	s.mu.Unlock()

	if removed {
		s.notify(Change{Kind: ChangeRollback})
	}
}

// Replace swaps the full message list, used when switching conversations.
func (s *Store) Replace(msgs []*Message) {
	s.mu.Lock()
	s.messages = make([]*Message, len(msgs))
	copy(s.messages, msgs)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReplaced})
}

// Reset clears the store for a fresh conversation.
func (s *Store) Reset() {
	s.Replace(nil)
}

// =============================================================================
// READS
// =============================================================================

// Messages returns a snapshot of the message list. The returned
// messages are copies; mutating them does not affect the store.
func (s *Store) Messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// FirstUserMessage returns the content of the earliest user message,
// or "" if none. The catalog derives fallback titles from it.
func (s *Store) FirstUserMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.Role == RoleUser {
			return m.DisplayContent()
		}
	}
	return ""
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// byID finds a message by id. Caller holds s.mu.
func (s *Store) byID(id string) *Message {
	for _, m := range s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// lastNonSystem returns the most recent non-system message. Caller
// holds s.mu.
func (s *Store) lastNonSystem() *Message {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role != RoleSystem {
			return s.messages[i]
		}
	}
	return nil
}
