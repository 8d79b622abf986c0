// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/solaceapp/solace/internal/model"
	"github.com/solaceapp/solace/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	colorAccent = lipgloss.Color("135")
	colorUser   = lipgloss.Color("39")
	colorAssist = lipgloss.Color("42")
	colorDim    = lipgloss.Color("241")
	colorError  = lipgloss.Color("196")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorUser)

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAssist)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)
)

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle().Padding(0, 1)
	return vp
}

// =============================================================================
// RENDERING
// =============================================================================

// View renders the complete interface.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("solace")
	input := promptStyle.Render("> ") + m.input.View()
	status := m.renderStatus()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		input,
		status,
	)
}

// renderStatus renders the bottom line: spinner while a turn is in flight,
// the last error when one is pending, otherwise key hints.
func (m *Model) renderStatus() string {
	if m.lastError != "" {
		banner := util.TruncateRunes("✗ "+m.lastError, m.errorWidth())
		return statusStyle.Render(errorStyle.Render(banner))
	}
	if m.state == StateSending {
		return statusStyle.Render(m.spinner.View() + " thinking")
	}
	hints := "enter to send · ctrl+r to refresh · esc to quit"
	if n := util.RuneLen(m.input.Value()); n > 0 {
		hints += fmt.Sprintf(" · %d/%d", n, m.input.CharLimit)
	}
	return statusStyle.Render(hints)
}

// errorWidth bounds the error banner to one status line.
func (m *Model) errorWidth() int {
	if m.width <= 4 {
		return 76
	}
	return m.width - 4
}

// renderMessages renders the transcript for the viewport.
func (m *Model) renderMessages(messages []model.Message) string {
	if len(messages) == 0 {
		return timeStyle.Render("No messages yet. Say hello.")
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMessage renders one transcript entry: a labeled header line and the
// body text.
func renderMessage(msg model.Message) string {
	label := msg.Role.DisplayName()
	style := userLabelStyle
	if msg.Role == model.RoleAssistant {
		style = assistantLabelStyle
	}

	header := style.Render(label)
	if msg.DisplayTime != "" {
		header += " " + timeStyle.Render(msg.DisplayTime)
	}

	text := msg.Text
	if msg.InProgress && text == "" {
		text = "…"
	}
	return header + "\n" + text
}
