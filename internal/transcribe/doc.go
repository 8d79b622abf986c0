// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcribe provides the asynchronous speech-to-text pipeline.
//
// A recording becomes text in three steps: the audio blob is uploaded to
// object storage, a transcription job is submitted with the resulting URL,
// and a poller reads job status on a fixed interval until the job reaches a
// terminal state. The transcript is then fed into the chat engine as if the
// user had typed it.
//
// # Key Types
//
//   - ObjectStore: audio upload and download-URL interface
//   - Client: transcription endpoint client (submit + status)
//   - Job: the per-recording state machine
//     (submitted -> polling -> completed | failed)
//   - Poller: sequential, bounded, cancellable poll loop
//
// # Usage
//
//	poller := transcribe.NewPoller(transcribe.NewClient(baseURL, key))
//	text, err := poller.Transcribe(ctx, audioURL)
package transcribe
