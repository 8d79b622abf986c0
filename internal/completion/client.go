// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion provides the chat-completion endpoint client.
//
// The endpoint speaks the OpenAI-compatible chat completions format:
// request {model, messages, temperature}, response {choices: [{message:
// {content}}]}, bearer-token auth. The reply arrives as one body; the
// streaming reveal happens client-side in the chat engine.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Configuration constants for the completion API.
const (
	// DefaultBaseURL is the default completion endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is used when the config does not name one.
	DefaultModel = "llama3-70b-8192"

	// DefaultTemperature matches the assistant's conversational register.
	DefaultTemperature = 0.7

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// SystemPrompt frames the assistant persona for every request.
const SystemPrompt = "You are a compassionate AI mental health assistant. " +
	"Listen carefully, respond with warmth, and never dismiss what the user is feeling."

// sharedHTTPClient pools connections across all completion requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("completion API key not configured")

	// ErrEmptyReply indicates the endpoint answered without content.
	// The engine shows the fallback message when it sees this.
	ErrEmptyReply = errors.New("completion returned an empty reply")
)

// EndpointError represents an error response from the completion API.
type EndpointError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *EndpointError) Error() string {
	return fmt.Sprintf("completion error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`    // "system" or "user"
	Content string `json:"content"` // The message content
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse represents a response from the chat completions endpoint.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// apiErrorResponse represents an error body from the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the chat completions endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
}

// NewClient creates a completion client with the given API key.
// If the key is empty the client is still created, but Complete requests
// fail with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxRetries:  DefaultMaxRetries,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithModel sets the model to request.
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

// WithTemperature sets the sampling temperature.
func (c *Client) WithTemperature(temperature float64) *Client {
	c.temperature = temperature
	return c
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Complete performs a chat completion request and returns the reply text.
//
// Transient failures (transport errors, 5xx, 429) are retried with
// exponential backoff. A well-formed response with no content resolves to
// ErrEmptyReply so the caller can fall back deterministically.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := c.doRequest(ctx, reqBody)
		if err != nil {
			if c.isRetryable(err) {
				lastErr = err
				continue
			}
			return "", err
		}

		content := strings.TrimSpace(response.GetContent())
		if content == "" {
			return "", ErrEmptyReply
		}
		return content, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// =============================================================================
// INTERNAL
// =============================================================================

// doRequest performs a single HTTP request to the chat completions endpoint.
func (c *Client) doRequest(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		endpointErr := &EndpointError{Status: resp.StatusCode, Message: resp.Status}
		var parsed apiErrorResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			endpointErr.Message = parsed.Error.Message
		}
		return nil, endpointErr
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &chatResp, nil
}

// readResponse reads a response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// isRetryable reports whether an error is worth another attempt.
func (c *Client) isRetryable(err error) bool {
	var endpointErr *EndpointError
	if errors.As(err, &endpointErr) {
		return endpointErr.Status >= 500 || endpointErr.Status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
