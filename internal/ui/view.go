// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/session"
	"github.com/jeranaias/forgedeck/internal/util"
)

const sidebarWidth = 28

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) View() string {
	if !m.ready {
		return "Starting forgedeck…"
	}

	var rows []string
	rows = append(rows, m.renderHeader())

	body := m.viewport.View()
	if m.sidebarOpen {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}
	rows = append(rows, body)

	if m.picker != nil {
		rows = append(rows, m.renderPicker())
	} else {
		rows = append(rows, m.input.View())
	}
	rows = append(rows, m.renderStatus())

	return strings.Join(rows, "\n")
}

func (m *Model) renderHeader() string {
	title := "New conversation"
	activeID := m.deps.Catalog.ActiveID()
	for _, s := range m.deps.Catalog.Summaries() {
		if s.ID == activeID && s.Title != "" {
			title = s.Title
			break
		}
	}

	header := m.theme.Header.Render("forgedeck") + " " +
		m.theme.Muted.Render(util.TruncateWidth(title, m.width-30))
	if m.snapshot.AppContext != "" {
		header += " " + m.theme.Link.Render("[app: "+m.snapshot.AppContext+"]")
	}
	return header
}

func (m *Model) renderSidebar() string {
	summaries := m.deps.Catalog.Summaries()
	activeID := m.deps.Catalog.ActiveID()

	var sb strings.Builder
	sb.WriteString(m.theme.Muted.Render("Conversations") + "\n")
	for i, s := range summaries {
		title := s.Title
		if title == "" {
			title = s.ID
		}
		title = util.TruncateWidth(title, sidebarWidth-4)

		style := m.theme.SidebarItem
		if s.ID == activeID {
			style = m.theme.SidebarActive
		}
		cursor := "  "
		if i == m.sidebarIdx {
			cursor = "> "
		}
		sb.WriteString(cursor + style.Render(title) + "\n")
	}
	if len(summaries) == 0 {
		sb.WriteString(m.theme.Muted.Render("  (none yet)") + "\n")
	}

	return lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(sb.String())
}

func (m *Model) renderPicker() string {
	p := m.picker
	var sb strings.Builder
	sb.WriteString(m.theme.Header.Render("Select app context") +
		m.theme.Muted.Render("  (enter: bind, x: clear, esc: close)") + "\n")

	switch {
	case p.loading:
		sb.WriteString(m.spin.View() + " loading apps…")
	case p.err != nil:
		sb.WriteString(m.theme.ToastErr.Render(p.err.Error()))
	case len(p.apps) == 0:
		sb.WriteString(m.theme.Muted.Render("No apps yet."))
	default:
		for i, app := range p.apps {
			cursor := "  "
			if i == p.idx {
				cursor = "> "
			}
			line := cursor + app.Name + " " + m.theme.Muted.Render("("+app.Status+")")
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}

func (m *Model) renderStatus() string {
	var status string
	switch m.snapshot.State {
	case session.StateSending:
		status = m.spin.View() + " sending…"
	case session.StateStreaming:
		status = m.spin.View() + " streaming (esc to cancel)"
	case session.StateFinalizing:
		status = m.spin.View() + " finishing…"
	case session.StateError:
		status = m.theme.ToastErr.Render("error — esc to dismiss, ctrl+r to retry")
	default:
		status = "enter: send | ctrl+b: conversations | ctrl+a: app | ctrl+n: new | ctrl+e: export"
	}

	line := m.theme.StatusBar.Render(status)
	if m.toast != "" {
		style := m.theme.Toast
		if m.toastErr {
			style = m.theme.ToastErr
		}
		line += "  " + style.Render(m.toast)
	}
	return line
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// rebuildTranscript re-renders the message list into the viewport,
// pinned to the bottom.
func (m *Model) rebuildTranscript() {
	if !m.ready {
		return
	}

	var sb strings.Builder
	for _, msg := range m.deps.Store.Messages() {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderMessage(msg *conversation.Message) string {
	var sb strings.Builder

	switch msg.Role {
	case conversation.RoleUser:
		sb.WriteString(m.theme.UserLabel.Render("You") + "\n")
		sb.WriteString(msg.Content)
	case conversation.RoleSystem:
		sb.WriteString(m.theme.SysNotice.Render(msg.Content))
	case conversation.RoleAssistant:
		sb.WriteString(m.theme.BotLabel.Render("Assistant") + "\n")
		sb.WriteString(m.renderAssistantBody(msg))
	}

	for _, callID := range msg.ToolCalls {
		if inv := m.deps.Tracker.Get(callID); inv != nil {
			sb.WriteString("\n")
			sb.WriteString(RenderToolCard(m.theme, inv, m.viewport.Width))
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

func (m *Model) renderAssistantBody(msg *conversation.Message) string {
	// Streaming bodies stay raw; markdown is rendered once finalized.
	if msg.Streaming {
		return msg.Content + m.theme.Muted.Render("▋")
	}

	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			body := strings.TrimRight(out, "\n")
			if footer := m.renderStatsFooter(msg); footer != "" {
				body += "\n" + footer
			}
			return body
		}
	}
	return msg.Content
}

// renderStatsFooter formats the stream statistics line shown under a
// finalized assistant message.
func (m *Model) renderStatsFooter(msg *conversation.Message) string {
	s := msg.Stats
	if s == nil || s.Duration <= 0 {
		return ""
	}
	return m.theme.Muted.Render(
		s.Duration.Truncate(10_000_000).String() + " | " +
			util.FormatFloat(s.DeltasPerSec()) + " deltas/s | first event " +
			s.FirstEvent.Truncate(1_000_000).String())
}
