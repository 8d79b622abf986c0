// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui provides the terminal chat interface.
//
// The interface is a single chat view: a scrollable transcript, a text input,
// and a status line. All conversation state lives in the chat engine; the
// view subscribes to conversation versions and re-renders on each one.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/solaceapp/solace/internal/chat"
	"github.com/solaceapp/solace/internal/model"
)

// =============================================================================
// VIEW STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady   State = iota // Ready for input
	StateSending              // A turn is in flight
)

// =============================================================================
// MESSAGES
// =============================================================================

// conversationMsg carries a fresh conversation snapshot into the update loop.
type conversationMsg struct {
	version  uint64
	messages []model.Message
}

// sendDoneMsg signals that a Send call returned.
type sendDoneMsg struct{ err error }

// reconcileDoneMsg signals that startup reconciliation finished.
type reconcileDoneMsg struct{ err error }

// errMsg carries a background error into the status line.
type errMsg struct{ err error }

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat interface.
type Model struct {
	state State

	engine *chat.Engine

	// updates receives conversation snapshots from the engine's observer.
	// Buffered so the observer never blocks a mutation.
	updates chan conversationMsg
	// errs receives background errors from the engine's error sink.
	errs chan error

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	lastError string
}

// New creates the chat interface bound to an engine. The engine must have
// been built with the model's ErrorSink (see Run) for background errors to
// surface in the status line.
func New(engine *chat.Engine) *Model {
	input := textinput.New()
	input.Placeholder = "Type how you're feeling..."
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	m := &Model{
		engine:  engine,
		updates: make(chan conversationMsg, 64),
		errs:    make(chan error, 16),
		input:   input,
		spinner: sp,
	}

	engine.Conversation().Subscribe(func(version uint64, messages []model.Message) {
		select {
		case m.updates <- conversationMsg{version: version, messages: messages}:
		default:
			// A stale frame is fine, a blocked mutation is not.
		}
	})

	return m
}

// ErrorSink returns the function the engine should report background errors
// to. Wire it via chat.WithErrorSink before starting the program.
func (m *Model) ErrorSink() func(error) {
	return func(err error) {
		select {
		case m.errs <- err:
		default:
		}
	}
}

// Init starts the spinner, the subscription pumps, and reconciliation.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
		m.waitForError(),
		m.reconcileCmd(),
	)
}

// Run starts the full-screen program and blocks until exit. Background
// engine errors are routed into the status line.
func Run(engine *chat.Engine) error {
	m := New(engine)
	engine.SetErrorSink(m.ErrorSink())
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForUpdate blocks on the next conversation snapshot.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

// waitForError blocks on the next background error.
func (m *Model) waitForError() tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: <-m.errs}
	}
}

// reconcileCmd runs startup reconciliation off the update loop.
func (m *Model) reconcileCmd() tea.Cmd {
	return func() tea.Msg {
		return reconcileDoneMsg{err: m.engine.Reconcile(context.Background())}
	}
}

// sendCmd delivers one user turn off the update loop. The engine streams the
// reply into the conversation, so progress arrives via conversationMsg.
func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.engine.Send(context.Background(), text)}
	}
}
