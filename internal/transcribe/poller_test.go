// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedSubmitter plays back a fixed sequence of status responses.
type scriptedSubmitter struct {
	submitErr   error
	statuses    []StatusResponse
	statusErrs  []error
	submitCalls int
	statusCalls int
}

func (s *scriptedSubmitter) Submit(ctx context.Context, audioURL string) (string, error) {
	s.submitCalls++
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return "remote-job-1", nil
}

func (s *scriptedSubmitter) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	i := s.statusCalls
	s.statusCalls++
	if i < len(s.statusErrs) && s.statusErrs[i] != nil {
		return StatusResponse{}, s.statusErrs[i]
	}
	if i >= len(s.statuses) {
		return StatusResponse{Status: "processing"}, nil
	}
	return s.statuses[i], nil
}

func fastPoller(sub Submitter) *Poller {
	return NewPoller(sub).WithInterval(time.Millisecond)
}

// =============================================================================
// POLLER TESTS
// =============================================================================

func TestTranscribeCompletesAfterPolling(t *testing.T) {
	sub := &scriptedSubmitter{statuses: []StatusResponse{
		{Status: "processing"},
		{Status: "processing"},
		{Status: "completed", Text: "hello from the transcript"},
	}}

	text, err := fastPoller(sub).Transcribe(context.Background(), "https://blobs/audio.m4a")

	require.NoError(t, err)
	require.Equal(t, "hello from the transcript", text)
	require.Equal(t, 1, sub.submitCalls)
	require.Equal(t, 3, sub.statusCalls, "polls must stop at the terminal status")
}

func TestTranscribeFailedStatus(t *testing.T) {
	sub := &scriptedSubmitter{statuses: []StatusResponse{
		{Status: "processing"},
		{Status: "failed", Error: "audio unreadable"},
	}}

	text, err := fastPoller(sub).Transcribe(context.Background(), "https://blobs/audio.m4a")

	require.Empty(t, text, "no text may be forwarded on failure")
	var terr *TranscriptionError
	require.ErrorAs(t, err, &terr)
	require.Contains(t, terr.Error(), "audio unreadable")
	require.Equal(t, 2, sub.statusCalls)
}

func TestTranscribeSubmitFailure(t *testing.T) {
	sub := &scriptedSubmitter{submitErr: errors.New("boom")}

	_, err := fastPoller(sub).Transcribe(context.Background(), "https://blobs/audio.m4a")

	var terr *TranscriptionError
	require.ErrorAs(t, err, &terr)
	require.Zero(t, sub.statusCalls, "no polls after a failed submit")
}

func TestTranscribePollBudgetExceeded(t *testing.T) {
	sub := &scriptedSubmitter{} // never terminal

	_, err := fastPoller(sub).WithMaxAttempts(5).Transcribe(context.Background(), "https://blobs/audio.m4a")

	require.ErrorIs(t, err, ErrPollBudgetExceeded)
	require.Equal(t, 5, sub.statusCalls)
}

func TestTranscribeCancellation(t *testing.T) {
	sub := &scriptedSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPoller(sub).Transcribe(ctx, "https://blobs/audio.m4a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTranscribeToleratesTransientStatusError(t *testing.T) {
	sub := &scriptedSubmitter{
		statusErrs: []error{errors.New("gateway hiccup"), nil},
		statuses:   []StatusResponse{{}, {Status: "completed", Text: "ok"}},
	}

	text, err := fastPoller(sub).Transcribe(context.Background(), "https://blobs/audio.m4a")

	require.NoError(t, err)
	require.Equal(t, "ok", text)
}

// =============================================================================
// JOB STATE MACHINE TESTS
// =============================================================================

func TestJobLifecycle(t *testing.T) {
	job := NewJob("https://blobs/audio.m4a")
	require.Equal(t, JobStatusSubmitted, job.Status())
	require.NotEmpty(t, job.ID)

	require.NoError(t, job.SetStatus(JobStatusPolling))
	require.NoError(t, job.SetStatus(JobStatusPolling), "polling -> polling is the steady state")
	require.NoError(t, job.SetStatus(JobStatusCompleted))
	require.True(t, job.Status().Terminal())
}

func TestJobInvalidTransitions(t *testing.T) {
	job := NewJob("ref")

	// submitted cannot jump straight to completed.
	require.Error(t, job.SetStatus(JobStatusCompleted))

	require.NoError(t, job.SetStatus(JobStatusPolling))
	require.NoError(t, job.SetStatus(JobStatusFailed))

	// A terminal job resolves once: no further transitions.
	require.Error(t, job.SetStatus(JobStatusPolling))
	require.Error(t, job.SetStatus(JobStatusCompleted))
}

func TestJobStatusTerminal(t *testing.T) {
	require.False(t, JobStatusSubmitted.Terminal())
	require.False(t, JobStatusPolling.Terminal())
	require.True(t, JobStatusCompleted.Terminal())
	require.True(t, JobStatusFailed.Terminal())
}
