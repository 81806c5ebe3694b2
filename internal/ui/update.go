// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/session"
	"github.com/jeranaias/forgedeck/internal/util"
)

const toastDuration = 4 * time.Second

// appPicker is the modal app-context selector.
type appPicker struct {
	apps    []api.App
	idx     int
	loading bool
	err     error
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case frameMsg:
		// The store already holds the deltas; the buffer only paces
		// how often the transcript is rebuilt.
		if _, ok := m.buffer.Flush(); ok {
			m.rebuildTranscript()
		}
		if m.snapshot.State == session.StateStreaming {
			return m, m.nextFrame()
		}
		return m, nil

	case storeChangedMsg:
		m.rebuildTranscript()
		return m, m.waitForEvent()

	case catalogChangedMsg:
		m.rebuildTranscript()
		return m, m.waitForEvent()

	case snapshotMsg:
		prev := m.snapshot.State
		m.snapshot = msg.snap
		cmds := []tea.Cmd{m.waitForEvent()}
		if msg.snap.State == session.StateStreaming && prev != session.StateStreaming {
			cmds = append(cmds, m.nextFrame())
		}
		if !msg.snap.State.Active() {
			// Drop whatever the last frame missed; the rebuild below
			// pulls the full bodies from the store.
			m.buffer.Reset()
			m.rebuildTranscript()
		}
		return m, tea.Batch(cmds...)

	case toastMsg:
		m.toast = msg.text
		m.toastErr = msg.kind == "error"
		return m, tea.Batch(m.waitForEvent(), m.clearToastLater())

	case navigateMsg:
		m.toast = "Deployed: " + msg.destination
		m.toastErr = false
		return m, tea.Batch(m.waitForEvent(), m.clearToastLater())

	case finalizedMsg:
		if blocks := ExtractCodeBlocks(msg.msg.Content); len(blocks) > 0 {
			m.toast = fmt.Sprintf("%d code block(s) in reply — ctrl+e to export", len(blocks))
			m.toastErr = false
		}
		m.rebuildTranscript()
		return m, tea.Batch(m.waitForEvent(), m.clearToastLater())

	case appsLoadedMsg:
		if m.picker != nil {
			m.picker.loading = false
			m.picker.apps = msg.apps
			m.picker.err = msg.err
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.toast = "Export failed: " + msg.err.Error()
			m.toastErr = true
		} else {
			m.toast = "Exported to " + msg.path
			m.toastErr = false
		}
		return m, m.clearToastLater()

	case clearToastMsg:
		m.toast = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(msg tea.WindowSizeMsg) *Model {
	m.width = msg.Width
	m.height = msg.Height

	contentWidth := msg.Width
	if m.sidebarOpen {
		contentWidth -= sidebarWidth
	}
	vpHeight := msg.Height - m.input.Height() - 4
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = newViewport(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.input.SetWidth(contentWidth - 2)
	m.rebuildTranscript()
	return m
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Modal picker swallows navigation keys while open.
	if m.picker != nil {
		return m.handlePickerKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		m.deps.Controller.Cancel()
		return m, tea.Quit

	case "esc":
		if m.snapshot.State == session.StateError {
			m.deps.Controller.Acknowledge()
			return m, nil
		}
		m.buffer.Reset()
		m.deps.Controller.Cancel()
		return m, nil

	case "enter":
		text := m.input.Value()
		if err := m.deps.Controller.Send(context.Background(), text); err != nil {
			return m, m.errToast(err)
		}
		m.input.Reset()
		return m, nil

	case "alt+enter":
		m.input.InsertString("\n")
		return m, nil

	case "ctrl+b":
		m.sidebarOpen = !m.sidebarOpen
		return m.resize(tea.WindowSizeMsg{Width: m.width, Height: m.height}), nil

	case "up", "down":
		if m.sidebarOpen {
			m.moveSidebar(msg.String())
			return m, nil
		}

	case "ctrl+j":
		if m.sidebarOpen {
			return m, m.selectCmd()
		}

	case "ctrl+n":
		m.deps.Controller.NewConversation()
		return m, nil

	case "ctrl+a":
		m.picker = &appPicker{loading: true}
		return m, m.loadAppsCmd()

	case "ctrl+d":
		if m.sidebarOpen {
			return m, m.deleteCmd()
		}

	case "ctrl+e":
		return m, m.exportCmd()

	case "ctrl+r":
		if m.snapshot.State == session.StateIdle && m.deps.Controller.Err() == nil {
			return m, m.refreshCmd()
		}
		if err := m.deps.Controller.Retry(context.Background()); err != nil {
			return m, m.errToast(err)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.picker
	switch msg.String() {
	case "esc":
		m.picker = nil
	case "up":
		if p.idx > 0 {
			p.idx--
		}
	case "down":
		if p.idx < len(p.apps)-1 {
			p.idx++
		}
	case "x":
		m.deps.Controller.SetAppContext("")
		m.picker = nil
	case "enter":
		if p.idx < len(p.apps) {
			m.deps.Controller.SetAppContext(p.apps[p.idx].ID)
		}
		m.picker = nil
	}
	return m, nil
}

func (m *Model) moveSidebar(dir string) {
	n := len(m.deps.Catalog.Summaries())
	if n == 0 {
		return
	}
	if dir == "up" && m.sidebarIdx > 0 {
		m.sidebarIdx--
	}
	if dir == "down" && m.sidebarIdx < n-1 {
		m.sidebarIdx++
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) nextFrame() tea.Cmd {
	return tea.Tick(time.Second/defaultMaxFPS, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func (m *Model) clearToastLater() tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearToastMsg{}
	})
}

func (m *Model) errToast(err error) tea.Cmd {
	return func() tea.Msg {
		return toastMsg{kind: "error", text: err.Error()}
	}
}

func (m *Model) loadAppsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		apps, err := m.deps.Apps.ListApps(ctx)
		return appsLoadedMsg{apps: apps, err: err}
	}
}

func (m *Model) selectCmd() tea.Cmd {
	summaries := m.deps.Catalog.Summaries()
	if m.sidebarIdx >= len(summaries) {
		return nil
	}
	id := summaries[m.sidebarIdx].ID
	return func() tea.Msg {
		if err := m.deps.Controller.SelectConversation(context.Background(), id); err != nil {
			return toastMsg{kind: "error", text: err.Error()}
		}
		return catalogChangedMsg{}
	}
}

func (m *Model) deleteCmd() tea.Cmd {
	summaries := m.deps.Catalog.Summaries()
	if m.sidebarIdx >= len(summaries) {
		return nil
	}
	id := summaries[m.sidebarIdx].ID
	return func() tea.Msg {
		if err := m.deps.Controller.DeleteConversation(context.Background(), id); err != nil {
			return toastMsg{kind: "error", text: err.Error()}
		}
		return catalogChangedMsg{}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.deps.Catalog.Refresh(context.Background()); err != nil {
			return toastMsg{kind: "error", text: err.Error()}
		}
		return catalogChangedMsg{}
	}
}

func (m *Model) exportCmd() tea.Cmd {
	id := m.deps.Catalog.ActiveID()
	if id == "" {
		return m.errToast(fmt.Errorf("no active conversation to export"))
	}
	return func() tea.Msg {
		md, err := m.deps.Catalog.ExportMarkdown(context.Background(), id)
		if err != nil {
			return exportedMsg{err: err}
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return exportedMsg{err: err}
		}
		dir := filepath.Join(home, ".forgedeck", "exports")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, id+".md")
		if err := util.AtomicWriteFile(path, []byte(md), 0o644); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}
