// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// PALETTE
// =============================================================================

var (
	colorCyan    = lipgloss.Color("#56b6c2")
	colorPurple  = lipgloss.Color("#c678dd")
	colorGreen   = lipgloss.Color("#98c379")
	colorRed     = lipgloss.Color("#e06c75")
	colorYellow  = lipgloss.Color("#e5c07b")
	colorMutedD  = lipgloss.Color("#5c6370")
	colorMutedL  = lipgloss.Color("#a0a1a7")
	colorSurface = lipgloss.Color("#2c313c")
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the configured lipgloss styles.
type Theme struct {
	IsDark bool

	Header    lipgloss.Style
	Muted     lipgloss.Style
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	SysNotice lipgloss.Style
	Toast     lipgloss.Style
	ToastErr  lipgloss.Style

	ToolPending lipgloss.Style
	ToolOK      lipgloss.Style
	ToolFailed  lipgloss.Style
	ToolBody    lipgloss.Style

	SidebarItem   lipgloss.Style
	SidebarActive lipgloss.Style
	Link          lipgloss.Style
	StatusBar     lipgloss.Style
}

// NewTheme builds the theme, honoring the configured mode: "dark",
// "light", or "auto" (terminal background detection via termenv).
func NewTheme(mode string) *Theme {
	isDark := true
	switch mode {
	case "light":
		isDark = false
	case "dark":
		isDark = true
	default:
		isDark = termenv.HasDarkBackground()
	}

	muted := colorMutedD
	if !isDark {
		muted = colorMutedL
	}

	t := &Theme{IsDark: isDark}

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorCyan).
		Padding(0, 1)

	t.Muted = lipgloss.NewStyle().Foreground(muted)
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	t.BotLabel = lipgloss.NewStyle().Bold(true).Foreground(colorPurple)
	t.SysNotice = lipgloss.NewStyle().Italic(true).Foreground(colorYellow)

	t.Toast = lipgloss.NewStyle().
		Foreground(colorYellow).
		Padding(0, 1)
	t.ToastErr = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorRed).
		Padding(0, 1)

	t.ToolPending = lipgloss.NewStyle().Foreground(colorYellow)
	t.ToolOK = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	t.ToolFailed = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	t.ToolBody = lipgloss.NewStyle().Foreground(muted).PaddingLeft(2)

	t.SidebarItem = lipgloss.NewStyle().Foreground(muted).Padding(0, 1)
	t.SidebarActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorCyan).
		Background(colorSurface).
		Padding(0, 1)

	t.Link = lipgloss.NewStyle().Foreground(colorCyan).Underline(true)
	t.StatusBar = lipgloss.NewStyle().Foreground(muted).Padding(0, 1)

	return t
}
