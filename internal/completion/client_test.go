// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompleteReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama3-70b-8192", req.Model)
		require.InDelta(t, 0.7, req.Temperature, 0.001)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  hello there  "}}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key").WithBaseURL(server.URL)
	reply, err := client.Complete(context.Background(), []ChatMessage{
		NewSystemMessage(SystemPrompt),
		NewUserMessage(`User says: "hi"` + "\nDetected Emotion(s): unknown"),
	})

	require.NoError(t, err)
	require.Equal(t, "hello there", reply, "reply should be trimmed")
}

func TestCompleteEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": ""}}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key").WithBaseURL(server.URL)
	_, err := client.Complete(context.Background(), []ChatMessage{NewUserMessage("hi")})
	require.ErrorIs(t, err, ErrEmptyReply)
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewClient("test-key").WithBaseURL(server.URL)
	_, err := client.Complete(context.Background(), []ChatMessage{NewUserMessage("hi")})
	require.ErrorIs(t, err, ErrEmptyReply)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "recovered"}}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key").WithBaseURL(server.URL)
	reply, err := client.Complete(context.Background(), []ChatMessage{NewUserMessage("hi")})

	require.NoError(t, err)
	require.Equal(t, "recovered", reply)
	require.EqualValues(t, 2, calls.Load())
}

func TestCompleteDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	client := NewClient("test-key").WithBaseURL(server.URL)
	_, err := client.Complete(context.Background(), []ChatMessage{NewUserMessage("hi")})

	var endpointErr *EndpointError
	require.ErrorAs(t, err, &endpointErr)
	require.Equal(t, http.StatusUnauthorized, endpointErr.Status)
	require.Equal(t, "invalid api key", endpointErr.Message)
	require.EqualValues(t, 1, calls.Load(), "401 must not be retried")
}

func TestCompleteNotConfigured(t *testing.T) {
	client := NewClient("")
	_, err := client.Complete(context.Background(), []ChatMessage{NewUserMessage("hi")})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompleteRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-key").WithBaseURL(server.URL).WithMaxRetries(2)
	_, err := client.Complete(context.Background(), []ChatMessage{NewUserMessage("hi")})

	require.Error(t, err)
	if errors.Is(err, ErrEmptyReply) {
		t.Error("exhausted retries should not look like an empty reply")
	}
}
