// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates the conversation lifecycle: reconciling the local
// cache against the remote log, sending user turns, streaming assistant
// replies token by token, and feeding transcribed audio into the same path.
package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/solaceapp/solace/internal/cache"
	"github.com/solaceapp/solace/internal/completion"
	"github.com/solaceapp/solace/internal/model"
	"github.com/solaceapp/solace/internal/remote"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// TypingPlaceholder is shown while the completion request is in flight.
	TypingPlaceholder = "Typing…"

	// FallbackReply replaces the placeholder when the endpoint fails or
	// returns nothing usable.
	FallbackReply = "Sorry, no response from the AI."

	// DefaultRevealInterval is the delay between revealed reply tokens.
	DefaultRevealInterval = 75 * time.Millisecond

	// detachedTimeout bounds best-effort background work such as remote
	// appends, which must not inherit UI lifetimes.
	detachedTimeout = 30 * time.Second
)

// =============================================================================
// DEPENDENCY INTERFACES
// =============================================================================

// Completer produces an assistant reply for a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []completion.ChatMessage) (string, error)
}

// Log is the remote message log the engine reconciles against.
type Log interface {
	Append(ctx context.Context, entry remote.Entry) (model.Message, error)
	Query(ctx context.Context, userID string) ([]model.Message, error)
	IsConfigured() bool
}

// Transcriber resolves an audio reference to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns a single user's conversation and drives every mutation of it.
// All methods are safe for concurrent use; Send and SendTranscript serialize
// so at most one reply is being delivered at a time.
type Engine struct {
	conv        *model.Conversation
	store       cache.Store
	remote      Log
	completer   Completer
	transcriber Transcriber

	revealInterval time.Duration
	onError        func(error)

	// sendMu serializes turn delivery end to end.
	sendMu sync.Mutex

	// detached tracks background remote appends so tests and shutdown
	// can join them.
	detached sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithRevealInterval overrides the token reveal pacing.
func WithRevealInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.revealInterval = d
		}
	}
}

// WithTranscriber attaches a speech-to-text resolver.
func WithTranscriber(t Transcriber) Option {
	return func(e *Engine) { e.transcriber = t }
}

// WithErrorSink routes background and degraded-mode errors to fn. Without a
// sink they are only logged.
func WithErrorSink(fn func(error)) Option {
	return func(e *Engine) { e.onError = fn }
}

// NewEngine creates an engine for the given conversation. The store holds
// the local cache, remoteLog is the remote source of truth, and completer
// produces replies.
func NewEngine(conv *model.Conversation, store cache.Store, remoteLog Log, completer Completer, opts ...Option) *Engine {
	e := &Engine{
		conv:           conv,
		store:          store,
		remote:         remoteLog,
		completer:      completer,
		revealInterval: DefaultRevealInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Conversation returns the engine's conversation for read access and
// subscription.
func (e *Engine) Conversation() *model.Conversation {
	return e.conv
}

// SetErrorSink replaces the error sink. Call before any Send or Reconcile:
// the field is not guarded.
func (e *Engine) SetErrorSink(fn func(error)) {
	e.onError = fn
}

// Wait blocks until all detached background work has finished.
func (e *Engine) Wait() {
	e.detached.Wait()
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// reportError hands an error to the sink and the log. Nil errors are ignored.
func (e *Engine) reportError(err error) {
	if err == nil {
		return
	}
	log.Printf("chat: %v", err)
	if e.onError != nil {
		e.onError(err)
	}
}

// persist writes the current conversation snapshot to the cache. In-progress
// messages are transient display state and are filtered out, so a cached
// sequence always loads fully settled no matter when the write races a
// streaming reveal.
func (e *Engine) persist(ctx context.Context) error {
	snapshot := e.conv.Snapshot()
	settled := snapshot[:0]
	for _, msg := range snapshot {
		if msg.InProgress {
			continue
		}
		settled = append(settled, msg)
	}
	if err := cache.SaveConversation(ctx, e.store, e.conv.UserID(), settled); err != nil {
		return fmt.Errorf("failed to persist conversation: %w", err)
	}
	return nil
}

// appendRemote mirrors a message to the remote log in the background. The
// task uses its own deadline so cancelling the caller's context does not
// abandon the write. On acceptance the local message adopts the
// server-assigned identity.
func (e *Engine) appendRemote(msg model.Message) {
	if e.remote == nil || !e.remote.IsConfigured() {
		return
	}

	e.detached.Add(1)
	go func() {
		defer e.detached.Done()

		ctx, cancel := context.WithTimeout(context.Background(), detachedTimeout)
		defer cancel()

		accepted, err := e.remote.Append(ctx, remote.Entry{
			Text:   msg.Text,
			Sender: msg.Role.String(),
			UserID: e.conv.UserID(),
		})
		if err != nil {
			e.reportError(fmt.Errorf("remote append of %q failed: %w", msg.Preview(32), err))
			return
		}

		e.conv.MarkSynced(msg.ID, accepted.ID, accepted.CreatedAt)
		if err := e.persist(ctx); err != nil {
			e.reportError(err)
		}
	}()
}
