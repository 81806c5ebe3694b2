// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tooltrack

import (
	"encoding/json"
	"sync"
	"time"
)

// =============================================================================
// INVOCATION
// =============================================================================

// State is the lifecycle state of a tool invocation.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Invocation is one tool call announced by the stream.
type Invocation struct {
	CallID    string
	Tool      string
	Input     map[string]any
	State     State
	Payload   map[string]any
	StartedAt time.Time
	EndedAt   time.Time
}

// Terminal reports whether the invocation has received its result.
func (inv *Invocation) Terminal() bool {
	return inv.State == StateSucceeded || inv.State == StateFailed
}

// Label returns the human-readable name for the invocation's tool.
func (inv *Invocation) Label() string {
	return Label(inv.Tool)
}

// URL returns the payload's url field when the result carries one.
func (inv *Invocation) URL() string {
	if inv.Payload == nil {
		return ""
	}
	if url, ok := inv.Payload["url"].(string); ok {
		return url
	}
	return ""
}

// Render returns the display text for the invocation's result. A
// payload message wins over a url, which wins over the pretty-printed
// payload. Failed calls use the same precedence; the caller marks them
// visually.
func (inv *Invocation) Render() string {
	if inv.Payload == nil {
		return ""
	}
	if msg, ok := inv.Payload["message"].(string); ok && msg != "" {
		return msg
	}
	if url := inv.URL(); url != "" {
		return url
	}
	pretty, err := json.MarshalIndent(inv.Payload, "", "  ")
	if err != nil {
		return ""
	}
	return string(pretty)
}

// clone returns a copy safe to hand to observers.
func (inv *Invocation) clone() *Invocation {
	cp := *inv
	return &cp
}

// =============================================================================
// TOOL LABELS
// =============================================================================

// labels maps recognized tool names to human-readable labels.
var labels = map[string]string{
	"create_app":     "Creating app",
	"update_app":     "Updating app",
	"get_app":        "Fetching app",
	"get_app_logs":   "Fetching app logs",
	"list_apps":      "Listing apps",
	"delete_app":     "Deleting app",
	"list_databases": "Listing databases",
}

// Label maps a tool name to its human-readable label. Unknown names
// display the raw identifier.
func Label(tool string) string {
	if label, ok := labels[tool]; ok {
		return label
	}
	return tool
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker maintains the invocation records for the active stream. Safe
// for concurrent use; subscribers run outside the lock.
type Tracker struct {
	mu    sync.Mutex
	calls map[string]*Invocation
	order []string

	subMu   sync.Mutex
	subs    map[string]map[int]func(*Invocation)
	nextSub int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		calls: make(map[string]*Invocation),
		subs:  make(map[string]map[int]func(*Invocation)),
	}
}

// Start inserts a pending record for callID. A duplicate start for a
// known callID is dropped: the stream contract promises exactly one.
func (t *Tracker) Start(callID, tool string, input map[string]any) {
	t.mu.Lock()
	if _, exists := t.calls[callID]; exists {
		t.mu.Unlock()
		return
	}
	inv := &Invocation{
		CallID:    callID,
		Tool:      tool,
		Input:     input,
		State:     StatePending,
		StartedAt: time.Now(),
	}
	t.calls[callID] = inv
	t.order = append(t.order, callID)
	cp := inv.clone()
	t.mu.Unlock()

	t.notify(callID, cp)
}

// Finish transitions the record to its terminal state, exactly once.
// Results for unknown callIDs and repeat results are dropped.
func (t *Tracker) Finish(callID string, success bool, payload map[string]any) {
	t.mu.Lock()
	inv, exists := t.calls[callID]
	if !exists || inv.Terminal() {
		t.mu.Unlock()
		return
	}
	if success {
		inv.State = StateSucceeded
	} else {
		inv.State = StateFailed
	}
	inv.Payload = payload
	inv.EndedAt = time.Now()
	cp := inv.clone()
	t.mu.Unlock()

	t.notify(callID, cp)
}

// Get returns a copy of the invocation for callID, or nil.
func (t *Tracker) Get(callID string) *Invocation {
	t.mu.Lock()
	defer t.mu.Unlock()

	if inv, ok := t.calls[callID]; ok {
		return inv.clone()
	}
	return nil
}

// All returns copies of every invocation in start order.
func (t *Tracker) All() []*Invocation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Invocation, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.calls[id].clone())
	}
	return out
}

// Pending returns the callIDs still awaiting a result.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, id := range t.order {
		if !t.calls[id].Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// Reset drops all records, used when switching conversations.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.calls = make(map[string]*Invocation)
	t.order = nil
	t.mu.Unlock()
}

// Subscribe registers a change callback for one callID and returns an
// unsubscribe function. The callback receives a copy of the record
// after each change.
func (t *Tracker) Subscribe(callID string, fn func(*Invocation)) func() {
	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	if t.subs[callID] == nil {
		t.subs[callID] = make(map[int]func(*Invocation))
	}
	t.subs[callID][id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		if m := t.subs[callID]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(t.subs, callID)
			}
		}
		t.subMu.Unlock()
	}
}

func (t *Tracker) notify(callID string, inv *Invocation) {
	t.subMu.Lock()
	fns := make([]func(*Invocation), 0, len(t.subs[callID]))
	for _, fn := range t.subs[callID] {
		fns = append(fns, fn)
	}
	t.subMu.Unlock()

	for _, fn := range fns {
		fn(inv)
	}
}
