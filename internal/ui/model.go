// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/catalog"
	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/session"
	"github.com/jeranaias/forgedeck/internal/tooltrack"
)

// AppLister fetches the user's applications for the app-context picker.
type AppLister interface {
	ListApps(ctx context.Context) ([]api.App, error)
}

// Deps are the core collaborators the model renders and commands.
type Deps struct {
	Controller *session.Controller
	Store      *conversation.Store
	Tracker    *tooltrack.Tracker
	Catalog    *catalog.Catalog
	Apps       AppLister
	Theme      *Theme
}

// =============================================================================
// MESSAGES
// =============================================================================

type (
	// storeChangedMsg is pushed by the conversation store subscription.
	storeChangedMsg struct{ change conversation.Change }

	// catalogChangedMsg is pushed by the catalog subscription.
	catalogChangedMsg struct{}

	// snapshotMsg is pushed by the session controller subscription.
	snapshotMsg struct{ snap session.Snapshot }

	// toastMsg surfaces a non-blocking notice.
	toastMsg struct{ kind, text string }

	// navigateMsg carries a newly created resource URL.
	navigateMsg struct{ destination string }

	// finalizedMsg delivers a completed assistant message.
	finalizedMsg struct{ msg *conversation.Message }

	// frameMsg drives the capped-rate redraw while streaming.
	frameMsg struct{}

	// appsLoadedMsg completes an app-picker fetch.
	appsLoadedMsg struct {
		apps []api.App
		err  error
	}

	// exportedMsg completes a conversation export.
	exportedMsg struct {
		path string
		err  error
	}

	// clearToastMsg hides the toast after its display window.
	clearToastMsg struct{}
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the root Bubble Tea model for the console.
type Model struct {
	deps  Deps
	theme *Theme

	input    textarea.Model
	viewport viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	buffer *Buffer

	events chan tea.Msg

	width  int
	height int
	ready  bool

	snapshot session.Snapshot

	sidebarOpen bool
	sidebarIdx  int

	picker *appPicker

	toast    string
	toastErr bool
}

// NewModel builds the root model. Call Wire afterwards to connect the
// core subscriptions, then hand the model to tea.NewProgram.
func NewModel(deps Deps) *Model {
	input := textarea.New()
	input.Placeholder = "Ask the assistant…"
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)

	return &Model{
		deps:     deps,
		theme:    deps.Theme,
		input:    input,
		spin:     sp,
		renderer: renderer,
		buffer:   NewBuffer(),
		events:   make(chan tea.Msg, 256),
		snapshot: deps.Controller.Snapshot(),
	}
}

// Push delivers an external event into the program loop. Safe to call
// from any goroutine; drops the event if the UI is saturated rather
// than blocking the core.
func (m *Model) Push(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

// Wire subscribes the model to the core state and returns the session
// hooks main should pass to the controller's collaborator surface.
func (m *Model) Wire() session.Hooks {
	m.deps.Store.Subscribe(func(ch conversation.Change) {
		if ch.Kind == conversation.ChangeDelta {
			m.buffer.Write(ch.Delta)
			return // the frame tick picks it up
		}
		m.Push(storeChangedMsg{change: ch})
	})
	m.deps.Catalog.Subscribe(func() {
		m.Push(catalogChangedMsg{})
	})
	m.deps.Controller.Subscribe(func(snap session.Snapshot) {
		m.Push(snapshotMsg{snap: snap})
	})

	return session.Hooks{
		Notify: func(kind, message string) {
			m.Push(toastMsg{kind: kind, text: message})
		},
		Navigate: func(destination string) {
			m.Push(navigateMsg{destination: destination})
		},
		OnAssistantFinalized: func(msg *conversation.Message) {
			m.Push(finalizedMsg{msg: msg})
		},
	}
}

// Init starts the event pump and spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.spin.Tick)
}

// waitForEvent forwards the next pushed event into the update loop.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}
