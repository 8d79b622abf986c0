// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the durable local message cache.
//
// The cache is a key-value store backed by a local SQLite database. It holds
// a per-conversation copy of the message sequence under the key
// "conversation:{userID}" so history renders instantly on open, before the
// remote log answers. The cache carries no ordering authority: reconciliation
// overwrites it with the remote result.
//
// # Key Types
//
//   - Store: the key-value interface (Get / Set / Close)
//   - SQLiteStore: the on-disk implementation
//   - StorageError: a local read/write failure; callers degrade to
//     in-memory operation and log, never abort
//
// # Usage
//
//	store, err := cache.Open(filepath.Join(home, ".solace", "cache.db"))
//	if err != nil { ... }
//	defer store.Close()
//
//	msgs, err := cache.LoadConversation(ctx, store, "defaultUser")
package cache
