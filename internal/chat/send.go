// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/solaceapp/solace/internal/completion"
	"github.com/solaceapp/solace/internal/emotion"
	"github.com/solaceapp/solace/internal/model"
)

// ErrNoTranscriber is returned by SendTranscript when the engine was built
// without a speech-to-text resolver.
var ErrNoTranscriber = errors.New("no transcriber configured")

// Send delivers one user turn and streams the assistant's reply into the
// conversation. The sequence is: append the user message, mirror it to the
// remote log in the background, show a typing placeholder, request a
// completion, then reveal the reply one whitespace token at a time.
//
// Blank input is a no-op. A completion failure is not returned: the
// placeholder becomes a fallback reply and the failure goes to the error
// sink, so the transcript never ends on a dangling placeholder. The only
// error Send returns is context cancellation mid-reveal, after the full
// reply has been flushed to the transcript.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	userMsg := model.NewUserMessage(text)
	e.conv.Append(userMsg)
	if err := e.persist(ctx); err != nil {
		e.reportError(err)
	}
	e.appendRemote(userMsg)

	e.conv.Append(model.NewAssistantMessage(TypingPlaceholder))

	labels := emotion.Detect(text)
	reply, err := e.completer.Complete(ctx, []completion.ChatMessage{
		completion.NewSystemMessage(completion.SystemPrompt),
		completion.NewUserMessage(fmt.Sprintf("User says: \"%s\"\nDetected Emotion(s): %s", text, labels)),
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = completion.ErrEmptyReply
	}
	if err != nil {
		fallback := model.NewAssistantMessage(FallbackReply)
		fallback.InProgress = false
		e.conv.ReplaceLast(fallback)
		if perr := e.persist(ctx); perr != nil {
			e.reportError(perr)
		}
		e.appendRemote(fallback)
		e.reportError(fmt.Errorf("completion failed: %w", err))
		return nil
	}

	return e.reveal(ctx, reply)
}

// reveal replaces the typing placeholder with an empty in-progress message
// and grows its text token by token. Cancellation flushes the remaining
// reply at once so the stored transcript is never truncated.
func (e *Engine) reveal(ctx context.Context, reply string) error {
	e.conv.ReplaceLast(model.NewAssistantMessage(""))

	tokens := strings.Fields(reply)
	shown := make([]string, 0, len(tokens))
	for _, token := range tokens {
		select {
		case <-ctx.Done():
			e.conv.UpdateLastText(strings.Join(tokens, " "))
			e.finishReply()
			return ctx.Err()
		case <-time.After(e.revealInterval):
		}
		shown = append(shown, token)
		e.conv.UpdateLastText(strings.Join(shown, " "))
	}

	e.finishReply()
	return nil
}

// finishReply marks the reply complete, persists it, and mirrors it to the
// remote log. Persistence uses a fresh context so a cancelled send still
// leaves a durable transcript.
func (e *Engine) finishReply() {
	e.conv.FinishLast()

	ctx, cancel := context.WithTimeout(context.Background(), detachedTimeout)
	defer cancel()
	if err := e.persist(ctx); err != nil {
		e.reportError(err)
	}

	if last, ok := e.conv.Last(); ok {
		e.appendRemote(last)
	}
}

// SendTranscript resolves an audio reference to text and sends it as a
// normal user turn. The transcript feeds Send exactly once; a transcription
// failure produces no conversation mutation at all.
func (e *Engine) SendTranscript(ctx context.Context, audioURL string) error {
	if e.transcriber == nil {
		return ErrNoTranscriber
	}

	text, err := e.transcriber.Transcribe(ctx, audioURL)
	if err != nil {
		e.reportError(err)
		return err
	}
	return e.Send(ctx, text)
}
