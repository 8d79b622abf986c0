// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package remote provides the client for the authoritative message log.
//
// The remote log is an append-only per-conversation document store. Every
// accepted message is stamped with a server-assigned creation time, which is
// the source of truth for history ordering. The local cache is only a copy:
// reconciliation always prefers the remote result.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/solaceapp/solace/internal/model"
)

// Configuration constants for the message log API.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// appendBurst and appendPerSecond bound best-effort append traffic so a
	// burst of sends cannot stampede the log.
	appendPerSecond = 5
	appendBurst     = 10
)

// sharedHTTPClient pools connections across all message log requests.
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
	// ErrNotConfigured indicates the base URL or API key is not set.
	ErrNotConfigured = errors.New("message log not configured")
)

// RemoteWriteError wraps an append failure. The user-visible message is
// still shown locally; the failure is logged and reported, never fatal.
type RemoteWriteError struct {
	Err error
}

// Error implements the error interface.
func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote log append failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}

// RemoteQueryError wraps a history query failure. The reconciler falls back
// to the cached view when it sees one.
type RemoteQueryError struct {
	Err error
}

// Error implements the error interface.
func (e *RemoteQueryError) Error() string {
	return fmt.Sprintf("remote log query failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteQueryError) Unwrap() error {
	return e.Err
}

// APIError represents an error response from the message log API.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("message log error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// Entry is the payload for an append. The server assigns the document ID and
// creation time.
type Entry struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
	UserID string `json:"user_id"`
}

// document is a stored message as the log returns it.
type document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// queryResponse wraps the document list for a history query.
type queryResponse struct {
	Messages []document `json:"messages"`
}

// apiErrorResponse represents an error body from the API.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the remote message log.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int

	// limiter throttles best-effort appends issued by detached tasks.
	limiter *rate.Limiter
}

// NewClient creates a message log client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		maxRetries: DefaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(appendPerSecond), appendBurst),
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// IsConfigured returns true if the client has a base URL set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// Append writes an entry to the log and returns the stored message with the
// server-assigned ID and creation time. Detached best-effort callers pass
// through the client's rate limiter first.
func (c *Client) Append(ctx context.Context, entry Entry) (model.Message, error) {
	if !c.IsConfigured() {
		return model.Message{}, &RemoteWriteError{Err: ErrNotConfigured}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return model.Message{}, &RemoteWriteError{Err: err}
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return model.Message{}, &RemoteWriteError{Err: err}
	}

	respBody, err := c.doWithRetry(ctx, http.MethodPost, c.baseURL+"/v1/messages", body)
	if err != nil {
		return model.Message{}, &RemoteWriteError{Err: err}
	}

	var doc document
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return model.Message{}, &RemoteWriteError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return toMessage(doc), nil
}

// Query returns all messages for a user ordered by creation time ascending.
// The server orders the result; the client re-sorts defensively so a
// misbehaving backend cannot break the view's total order.
func (c *Client) Query(ctx context.Context, userID string) ([]model.Message, error) {
	if !c.IsConfigured() {
		return nil, &RemoteQueryError{Err: ErrNotConfigured}
	}

	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("order", "created_at")

	respBody, err := c.doWithRetry(ctx, http.MethodGet, c.baseURL+"/v1/messages?"+query.Encode(), nil)
	if err != nil {
		return nil, &RemoteQueryError{Err: err}
	}

	var resp queryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &RemoteQueryError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	messages := make([]model.Message, 0, len(resp.Messages))
	for _, doc := range resp.Messages {
		messages = append(messages, toMessage(doc))
	}
	model.SortByCreation(messages)
	return messages, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// toMessage converts a stored document to a domain message. Anything the
// authoritative log returns is by definition synced. Unknown sender values
// render as assistant turns rather than breaking the transcript.
func toMessage(doc document) model.Message {
	role := model.Role(doc.Sender)
	if !role.Valid() {
		role = model.RoleAssistant
	}
	return model.Message{
		ID:          doc.ID,
		Role:        role,
		Text:        doc.Text,
		CreatedAt:   doc.CreatedAt,
		DisplayTime: model.FormatDisplayTime(doc.CreatedAt),
		Synced:      true,
	}
}

// doWithRetry performs an HTTP request with retry and exponential backoff.
// Retries on transport errors, 5xx and 429; all other statuses resolve
// immediately.
func (c *Client) doWithRetry(ctx context.Context, method, requestURL string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		respBody, err := c.doRequest(ctx, method, requestURL, body)
		if err == nil {
			return respBody, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request against the log.
func (c *Client) doRequest(ctx context.Context, method, requestURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var parsed apiErrorResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
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
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	// Transport-level errors are retryable; context cancellation is not.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
