// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcribe provides the asynchronous speech-to-text pipeline.
package transcribe

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// JOB STATUS
// =============================================================================

// JobStatus represents the current state of a transcription job.
type JobStatus string

const (
	// JobStatusSubmitted indicates the job-creation request has been issued.
	JobStatusSubmitted JobStatus = "submitted"

	// JobStatusPolling indicates the job is being polled for completion.
	JobStatusPolling JobStatus = "polling"

	// JobStatusCompleted indicates the transcript is ready.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed indicates the job ended without a transcript.
	JobStatusFailed JobStatus = "failed"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// validTransitions encodes the job lifecycle:
// submitted -> polling -> polling ... -> completed | failed.
// submitted may fail directly when the creation request is rejected.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusSubmitted: {JobStatusPolling, JobStatusFailed},
	JobStatusPolling:   {JobStatusPolling, JobStatusCompleted, JobStatusFailed},
}

// =============================================================================
// JOB
// =============================================================================

// Job tracks one audio reference through the transcription state machine.
// It is discarded once its result has been handed off or its failure
// surfaced.
type Job struct {
	// ID is a unique local identifier for this job.
	ID string

	// AudioRef is the uploaded-audio URL handed to the endpoint.
	AudioRef string

	// RemoteID is the endpoint's job identifier, set after submission.
	RemoteID string

	// StartTime is when the job was created.
	StartTime time.Time

	// ResultText holds the transcript once the job completes.
	ResultText string

	// Attempts counts status polls issued so far.
	Attempts int

	status JobStatus
	mu     sync.Mutex
}

// NewJob creates a job in the submitted state.
func NewJob(audioRef string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		AudioRef:  audioRef,
		StartTime: time.Now(),
		status:    JobStatusSubmitted,
	}
}

// Status returns the current state (thread-safe).
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// SetStatus transitions the job, validating against the lifecycle.
// A transition out of a terminal state is an error: a job resolves once.
func (j *Job) SetStatus(status JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status == status {
		// polling -> polling is the steady state; any other self-transition
		// is a programming error.
		if status == JobStatusPolling {
			return nil
		}
		return fmt.Errorf("invalid transition: %s -> %s", j.status, status)
	}

	for _, allowed := range validTransitions[j.status] {
		if allowed == status {
			j.status = status
			return nil
		}
	}
	return fmt.Errorf("invalid transition: %s -> %s", j.status, status)
}
