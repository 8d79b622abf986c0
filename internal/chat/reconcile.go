// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/solaceapp/solace/internal/cache"
)

// Reconcile brings the conversation up to date. The cached copy is loaded
// first so the user sees history immediately, then the remote log is queried
// and, when it answers, its contents overwrite the view and the cache in a
// single write.
//
// Every storage and network failure is degraded mode, not an error: a broken
// cache read skips straight to the remote query, a remote failure leaves the
// cached view standing. Failures go to the error sink, and Reconcile
// returns nil so startup never dies on a recoverable store.
func (e *Engine) Reconcile(ctx context.Context) error {
	cached, err := cache.LoadConversation(ctx, e.store, e.conv.UserID())
	if err != nil {
		e.reportError(fmt.Errorf("failed to load cached conversation: %w", err))
	} else if len(cached) > 0 {
		e.conv.SetAll(cached)
	}

	if e.remote == nil || !e.remote.IsConfigured() {
		log.Printf("chat: remote log not configured, running cache-only")
		return nil
	}

	remoteMessages, err := e.remote.Query(ctx, e.conv.UserID())
	if err != nil {
		e.reportError(fmt.Errorf("remote history unavailable, showing cached copy: %w", err))
		return nil
	}

	e.conv.SetAll(remoteMessages)
	if err := e.persist(ctx); err != nil {
		e.reportError(err)
	}
	return nil
}
