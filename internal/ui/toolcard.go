// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/jeranaias/forgedeck/internal/tooltrack"
	"github.com/jeranaias/forgedeck/internal/util"
)

// =============================================================================
// TOOL STATUS CARD
// =============================================================================

// Status icons carry a shape as well as a color so state is readable
// without color vision.
const (
	iconPending = "…"
	iconOK      = "✓"
	iconFailed  = "✗"
)

// maxCollapsedLines bounds a card's result body in the transcript.
const maxCollapsedLines = 3

// RenderToolCard renders one invocation status card.
func RenderToolCard(theme *Theme, inv *tooltrack.Invocation, width int) string {
	if inv == nil {
		return ""
	}

	var sb strings.Builder
	switch inv.State {
	case tooltrack.StateSucceeded:
		sb.WriteString(theme.ToolOK.Render(iconOK))
	case tooltrack.StateFailed:
		sb.WriteString(theme.ToolFailed.Render(iconFailed))
	default:
		sb.WriteString(theme.ToolPending.Render(iconPending))
	}
	sb.WriteString(" ")
	sb.WriteString(theme.Header.Render(inv.Label()))
	if inv.State == tooltrack.StateFailed {
		sb.WriteString(theme.ToolFailed.Render(" failed"))
	}

	body := inv.Render()
	if body == "" {
		return sb.String()
	}

	// Hyperlink results get link styling; everything else is muted.
	if inv.URL() != "" && body == inv.URL() {
		sb.WriteString("\n")
		sb.WriteString(theme.ToolBody.Render(theme.Link.Render(body)))
		return sb.String()
	}

	lines := strings.Split(body, "\n")
	if len(lines) > maxCollapsedLines {
		lines = append(lines[:maxCollapsedLines], "…")
	}
	for _, line := range lines {
		sb.WriteString("\n")
		sb.WriteString(theme.ToolBody.Render(util.TruncateWidth(line, width-4)))
	}
	return sb.String()
}
