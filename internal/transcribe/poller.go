// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcribe provides the asynchronous speech-to-text pipeline.
package transcribe

import (
	"context"
	"errors"
	"log"
	"time"
)

// Polling constants.
const (
	// DefaultPollInterval is the fixed delay between status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxPollAttempts bounds the poll loop. At the default interval
	// this is a five minute budget; a job still pending after that resolves
	// as failed rather than polling forever.
	DefaultMaxPollAttempts = 150
)

// ErrPollBudgetExceeded indicates the job did not reach a terminal status
// within the poll budget.
var ErrPollBudgetExceeded = errors.New("transcription poll budget exceeded")

// Endpoint status strings.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// =============================================================================
// POLLER
// =============================================================================

// Poller drives a transcription job to a terminal state.
//
// Polls for a single job are strictly sequential: the next poll is only
// scheduled after the previous one resolved. The loop is cancellable
// through the caller's context and bounded by MaxPollAttempts.
type Poller struct {
	client      Submitter
	interval    time.Duration
	maxAttempts int
}

// NewPoller creates a poller with the default interval and budget.
func NewPoller(client Submitter) *Poller {
	return &Poller{
		client:      client,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxPollAttempts,
	}
}

// WithInterval sets the delay between polls.
func (p *Poller) WithInterval(interval time.Duration) *Poller {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

// WithMaxAttempts sets the poll budget.
func (p *Poller) WithMaxAttempts(max int) *Poller {
	if max > 0 {
		p.maxAttempts = max
	}
	return p
}

// Transcribe submits the audio reference and polls until terminal state.
//
// It resolves exactly once: with the transcript text on completion, or with
// a TranscriptionError (or context error) on any failure. No partial text
// is ever returned.
func (p *Poller) Transcribe(ctx context.Context, audioURL string) (string, error) {
	job := NewJob(audioURL)

	remoteID, err := p.client.Submit(ctx, audioURL)
	if err != nil {
		job.SetStatus(JobStatusFailed)
		return "", &TranscriptionError{JobID: job.ID, Err: err}
	}
	job.RemoteID = remoteID
	job.SetStatus(JobStatusPolling)
	log.Printf("transcribe: job %s submitted (remote %s)", job.ID, remoteID)

	for job.Attempts < p.maxAttempts {
		// Fixed delay before every poll, including the first.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.interval):
		}

		job.Attempts++
		status, err := p.client.Status(ctx, job.RemoteID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// A single failed status read is not terminal; the endpoint may
			// be briefly unavailable while the job keeps processing.
			log.Printf("transcribe: job %s poll %d failed: %v", job.ID, job.Attempts, err)
			continue
		}

		switch status.Status {
		case statusCompleted:
			job.ResultText = status.Text
			job.SetStatus(JobStatusCompleted)
			log.Printf("transcribe: job %s completed after %d polls", job.ID, job.Attempts)
			return status.Text, nil
		case statusFailed:
			job.SetStatus(JobStatusFailed)
			return "", &TranscriptionError{JobID: job.ID, Detail: status.Error}
		default:
			// queued, processing, anything unrecognized: keep polling.
		}
	}

	job.SetStatus(JobStatusFailed)
	return "", &TranscriptionError{JobID: job.ID, Err: ErrPollBudgetExceeded}
}
