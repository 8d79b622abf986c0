// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+r":
			m.lastError = ""
			cmds = append(cmds, m.reconcileCmd())

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.state == StateSending {
				break
			}
			m.input.Reset()
			m.state = StateSending
			m.lastError = ""
			cmds = append(cmds, m.sendCmd(text))
		}

	case conversationMsg:
		m.viewport.SetContent(m.renderMessages(msg.messages))
		m.viewport.GotoBottom()
		cmds = append(cmds, m.waitForUpdate())

	case sendDoneMsg:
		m.state = StateReady
		if msg.err != nil {
			m.lastError = msg.err.Error()
		}

	case reconcileDoneMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
		}

	case errMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
		}
		cmds = append(cmds, m.waitForError())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleResize sizes the viewport to the space left after the header, input,
// and status lines.
func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	// header (1) + input (1) + status (1)
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = newViewport(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.Width = m.width - 4

	m.viewport.SetContent(m.renderMessages(m.engine.Conversation().Snapshot()))
	m.viewport.GotoBottom()
}
