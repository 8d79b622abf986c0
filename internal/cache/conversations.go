// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the durable local message cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solaceapp/solace/internal/model"
)

// ConversationKey returns the cache key for a user's conversation.
// Key format: conversation:{userID}.
func ConversationKey(userID string) string {
	return "conversation:" + userID
}

// SaveConversation serializes the message sequence and writes it under the
// user's conversation key. Callers pass settled messages only; the engine
// filters in-progress messages before every save, and the message type
// additionally excludes the in-progress flag from serialization.
func SaveConversation(ctx context.Context, store Store, userID string, messages []model.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return store.Set(ctx, ConversationKey(userID), data)
}

// LoadConversation reads the cached message sequence for a user.
// A missing key returns an empty sequence and no error.
func LoadConversation(ctx context.Context, store Store, userID string) ([]model.Message, error) {
	data, ok, err := store.Get(ctx, ConversationKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return messages, nil
}
