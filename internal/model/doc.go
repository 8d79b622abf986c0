// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing a chat conversation as an owned, versioned message
// sequence with observer notification.
//
// # Key Types
//
//   - Conversation: versioned message sequence with mutation methods and
//     the single-in-progress invariant enforced internally
//   - Message: single message with role, text, timestamps and sync state
//   - Role: message sender enumeration (user, assistant)
//
// # Usage
//
// Create a conversation and observe mutations:
//
//	conv := model.NewConversation("defaultUser")
//	conv.Subscribe(func(version uint64, msgs []model.Message) {
//	    render(msgs)
//	})
//	conv.Append(model.NewUserMessage("Hello!"))
package model
