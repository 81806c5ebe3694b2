// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/tooltrack"
)

// The store is the only source of streamed text; a frame flush just
// triggers a transcript rebuild.
func TestFrameFlushRendersFromStore(t *testing.T) {
	store := conversation.NewStore()
	if _, err := store.AppendUser("hello"); err != nil {
		t.Fatalf("append user: %v", err)
	}
	id := store.BeginAssistant()
	store.ApplyDelta(id, "streamed reply")

	m := &Model{
		deps:   Deps{Store: store, Tracker: tooltrack.NewTracker()},
		theme:  NewTheme(""),
		buffer: NewBufferWithConfig(1, 60),
		events: make(chan tea.Msg, 8),
		input:  textarea.New(),
	}
	m.resize(tea.WindowSizeMsg{Width: 80, Height: 24})

	m.buffer.Write("streamed reply")
	m.Update(frameMsg{})

	if got := m.viewport.View(); !strings.Contains(got, "streamed reply") {
		t.Errorf("transcript missing streamed text:\n%s", got)
	}
}

// A frame with nothing buffered leaves the viewport untouched.
func TestFrameWithoutDeltasSkipsRebuild(t *testing.T) {
	store := conversation.NewStore()
	m := &Model{
		deps:   Deps{Store: store, Tracker: tooltrack.NewTracker()},
		theme:  NewTheme(""),
		buffer: NewBufferWithConfig(1, 60),
		events: make(chan tea.Msg, 8),
		input:  textarea.New(),
	}
	m.resize(tea.WindowSizeMsg{Width: 80, Height: 24})
	m.viewport.SetContent("sentinel")

	m.Update(frameMsg{})

	if got := m.viewport.View(); !strings.Contains(got, "sentinel") {
		t.Errorf("empty frame should not rebuild the transcript:\n%s", got)
	}
}
