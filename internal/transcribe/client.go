// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcribe provides the asynchronous speech-to-text pipeline.
package transcribe

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
)

// Configuration constants for the transcription API.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

// sharedHTTPClient pools connections across all transcription requests.
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
	ErrNotConfigured = errors.New("transcription API key not configured")
)

// TranscriptionError wraps a job submission failure or a terminal failed
// status. The caller surfaces it as a transient notification; no text is
// forwarded to the conversation.
type TranscriptionError struct {
	JobID  string
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *TranscriptionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("transcription failed (job %s): %s", e.JobID, e.Detail)
	}
	return fmt.Sprintf("transcription failed (job %s): %v", e.JobID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// APIError represents an error response from the transcription API.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("transcription API error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// OBJECT STORAGE
// =============================================================================

// ObjectStore uploads recorded audio blobs and mints download URLs the
// transcription endpoint can fetch from.
type ObjectStore interface {
	// Upload stores the blob under the given path.
	Upload(ctx context.Context, path string, r io.Reader) error

	// DownloadURL returns a fetchable URL for a previously uploaded path.
	DownloadURL(ctx context.Context, path string) (string, error)
}

// HTTPObjectStore is an ObjectStore backed by a storage gateway:
// PUT {base}/{path} uploads, GET {base}/{path}?url returns the public URL.
type HTTPObjectStore struct {
	baseURL string
	apiKey  string
}

// NewHTTPObjectStore creates an object store client.
func NewHTTPObjectStore(baseURL, apiKey string) *HTTPObjectStore {
	return &HTTPObjectStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// Upload stores the blob under the given path.
func (s *HTTPObjectStore) Upload(ctx context.Context, path string, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(path), r)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	return nil
}

// DownloadURL returns a fetchable URL for a previously uploaded path.
func (s *HTTPObjectStore) DownloadURL(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(path)+"?url", nil)
	if err != nil {
		return "", err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &APIError{Status: resp.StatusCode, Message: resp.Status}
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode download URL: %w", err)
	}
	return parsed.URL, nil
}

func (s *HTTPObjectStore) objectURL(path string) string {
	return s.baseURL + "/" + url.PathEscape(path)
}

// =============================================================================
// TRANSCRIPTION CLIENT
// =============================================================================

// Submitter submits transcription jobs and reads their status.
// The Poller depends on this interface so tests can script status
// sequences without a server.
type Submitter interface {
	Submit(ctx context.Context, audioURL string) (string, error)
	Status(ctx context.Context, jobID string) (StatusResponse, error)
}

// StatusResponse is the job state as the endpoint reports it.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// submitRequest is the job-creation payload. Sentiment metadata is always
// requested so emotion context rides along with the transcript.
type submitRequest struct {
	AudioURL          string `json:"audio_url"`
	SentimentAnalysis bool   `json:"sentiment_analysis"`
}

// Client talks to the transcription endpoint.
type Client struct {
	baseURL string
	apiKey  string
}

// NewClient creates a transcription client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Submit creates a transcription job for the uploaded audio and returns the
// job ID assigned by the endpoint.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(submitRequest{AudioURL: audioURL, SentimentAnalysis: true})
	if err != nil {
		return "", err
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/transcript", body)
	if err != nil {
		return "", err
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("submit response missing job id")
	}
	return parsed.ID, nil
}

// Status reads the current state of a transcription job.
func (c *Client) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	if !c.IsConfigured() {
		return StatusResponse{}, ErrNotConfigured
	}

	respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+url.PathEscape(jobID), nil)
	if err != nil {
		return StatusResponse{}, err
	}

	var status StatusResponse
	if err := json.Unmarshal(respBody, &status); err != nil {
		return StatusResponse{}, fmt.Errorf("failed to decode status response: %w", err)
	}
	return status, nil
}

// do performs a single HTTP request against the endpoint.
func (c *Client) do(ctx context.Context, method, requestURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
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
		return nil, &APIError{Status: resp.StatusCode, Message: resp.Status}
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
