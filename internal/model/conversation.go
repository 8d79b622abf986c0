// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Observer receives a snapshot of the message sequence after every mutation,
// together with the version that produced it.
type Observer func(version uint64, messages []Message)

// Conversation is the owned, versioned message sequence for a single user.
//
// All mutation goes through its methods, which enforce the core invariant:
// at most one message is in-progress at any time, it is always the last
// element, and it always has the assistant role. Observers are notified
// synchronously with a deep copy, never with the internal slice.
type Conversation struct {
	mu        sync.Mutex
	userID    string
	messages  []Message
	version   uint64
	observers []Observer
}

// NewConversation creates an empty conversation for the given user.
func NewConversation(userID string) *Conversation {
	return &Conversation{userID: userID}
}

// UserID returns the identifier of the conversation owner.
func (c *Conversation) UserID() string {
	return c.userID
}

// Subscribe registers an observer for mutation notifications.
// The observer is called synchronously while no lock is held on the
// sequence, so it may call back into the conversation.
func (c *Conversation) Subscribe(obs Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, obs)
	c.mu.Unlock()
}

// =============================================================================
// MUTATION
// =============================================================================

// Append adds a message to the end of the sequence.
//
// Appending an in-progress message while another is still in progress
// replaces the old one: the invariant that at most one in-progress message
// exists is enforced here rather than trusted to callers.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	if msg.InProgress {
		c.dropInProgressLocked()
	}
	c.messages = append(c.messages, msg)
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// ReplaceLast swaps the final message for the given one.
// On an empty sequence it behaves like Append.
func (c *Conversation) ReplaceLast(msg Message) {
	c.mu.Lock()
	if len(c.messages) == 0 {
		c.messages = append(c.messages, msg)
	} else {
		c.messages[len(c.messages)-1] = msg
	}
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// RemoveLast drops the final message. Removing from an empty sequence is a
// no-op and produces no notification.
func (c *Conversation) RemoveLast() {
	c.mu.Lock()
	if len(c.messages) == 0 {
		c.mu.Unlock()
		return
	}
	c.messages = c.messages[:len(c.messages)-1]
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// UpdateLastText mutates only the text of the final message. This is the
// reveal step of the streaming deliverer: one call per revealed token.
func (c *Conversation) UpdateLastText(text string) {
	c.mu.Lock()
	if len(c.messages) == 0 {
		c.mu.Unlock()
		return
	}
	c.messages[len(c.messages)-1].Text = text
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// FinishLast clears the in-progress flag on the final message.
func (c *Conversation) FinishLast() {
	c.mu.Lock()
	if len(c.messages) == 0 {
		c.mu.Unlock()
		return
	}
	c.messages[len(c.messages)-1].InProgress = false
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// SetAll replaces the whole sequence. Used by reconciliation, where the
// remote log's ordering is authoritative. The input is copied, then sorted
// by creation time with insertion order preserved on ties.
func (c *Conversation) SetAll(messages []Message) {
	copied := make([]Message, len(messages))
	copy(copied, messages)
	SortByCreation(copied)

	c.mu.Lock()
	c.messages = copied
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// MarkSynced records remote acceptance of a message: the server-assigned ID
// and creation time replace the local ones. Lookup is by local ID; a missing
// message (already reconciled away) is a no-op.
func (c *Conversation) MarkSynced(localID, remoteID string, createdAt time.Time) {
	c.mu.Lock()
	found := false
	for i := range c.messages {
		if c.messages[i].ID == localID {
			c.messages[i].ID = remoteID
			c.messages[i].CreatedAt = createdAt
			c.messages[i].Synced = true
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return
	}
	c.bumpLocked()
	version, snapshot := c.version, c.snapshotLocked()
	c.mu.Unlock()

	c.notify(version, snapshot)
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns a deep copy of the current message sequence.
func (c *Conversation) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Version returns the current mutation counter.
func (c *Conversation) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns a copy of the final message and true, or a zero message and
// false when the sequence is empty.
func (c *Conversation) Last() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// =============================================================================
// INTERNAL
// =============================================================================

// dropInProgressLocked removes any in-progress message. Caller holds mu.
func (c *Conversation) dropInProgressLocked() {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].InProgress {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

// bumpLocked advances the version counter. Caller holds mu.
func (c *Conversation) bumpLocked() {
	c.version++
}

// snapshotLocked copies the message slice. Caller holds mu.
func (c *Conversation) snapshotLocked() []Message {
	snapshot := make([]Message, len(c.messages))
	copy(snapshot, c.messages)
	return snapshot
}

// notify delivers a snapshot to every observer without holding the lock.
func (c *Conversation) notify(version uint64, snapshot []Message) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, obs := range observers {
		obs(version, snapshot)
	}
}

// SortByCreation orders messages by CreatedAt ascending. The sort is stable
// so equal timestamps keep their insertion order.
func SortByCreation(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
