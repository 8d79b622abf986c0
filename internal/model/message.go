// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/solaceapp/solace/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known senders.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// A message is "unsynced" until the remote log has accepted it and assigned
// a server timestamp; until then CreatedAt holds the local clock value.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// DisplayTime is the local HH:MM rendering of CreatedAt.
	DisplayTime string `json:"display_time"`

	// Content
	Text string `json:"text"`

	// Synced is true once the remote log has accepted this message.
	Synced bool `json:"synced"`

	// InProgress marks a message still being filled by a streaming reveal.
	// Never persisted: an in-progress message is finalized or replaced
	// before any store write.
	InProgress bool `json:"-"`
}

// NewMessage creates a new message with a generated local ID.
func NewMessage(role Role, text string) Message {
	now := time.Now()
	return Message{
		ID:          generateID(),
		Role:        role,
		Text:        text,
		CreatedAt:   now,
		DisplayTime: FormatDisplayTime(now),
	}
}

// NewUserMessage creates a new user message stamped with the local clock.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, text)
}

// NewAssistantMessage creates an in-progress assistant message.
func NewAssistantMessage(text string) Message {
	msg := NewMessage(RoleAssistant, text)
	msg.InProgress = true
	return msg
}

// Preview returns a truncated preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Text, maxLen)
}

// IsEmpty returns true if the message has no text.
func (m Message) IsEmpty() bool {
	return len(m.Text) == 0
}

// FormatDisplayTime renders a timestamp the way the conversation view
// displays it (24-hour HH:MM, local time).
func FormatDisplayTime(t time.Time) string {
	return t.Local().Format("15:04")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique local message ID. The remote log replaces it
// with a server-assigned ID once the message is accepted.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
