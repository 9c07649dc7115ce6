// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine drives a streaming chat completion against a provider and
// lands the result on the conversation as an assistant message.
//
// A generation is a small state machine: Init creates the assistant message
// in memory only, Open issues the streaming POST, Streaming accumulates
// content deltas, and Closed persists the conversation exactly once. Any
// failure before Closed leaves nothing on disk; the WIP assistant message
// lives only in the caller's in-memory conversation and vanishes with it.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/provider"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/usage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMessageNotFound is returned when the generation target message id
	// does not exist in the conversation.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidRole is returned when generation is requested against a
	// message that is not a USER message.
	ErrInvalidRole = errors.New("generation target must be a user message")

	// ErrProviderNotFound is returned when the provider id does not resolve.
	ErrProviderNotFound = errors.New("provider not found")
)

// TransportError is a non-success HTTP response or a response that is not an
// event stream. Body carries the diagnostic text read from the response.
type TransportError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.Status, e.Body)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// State is the phase of one generation.
type State int

const (
	// StateInit covers precondition checks and the in-memory creation of
	// the WIP assistant message.
	StateInit State = iota
	// StateOpen covers the streaming POST up to a validated response.
	StateOpen
	// StateStreaming covers event consumption.
	StateStreaming
	// StateClosed is the terminal success state; the conversation has been
	// persisted.
	StateClosed
	// StateErrored is the terminal failure state; nothing was persisted.
	StateErrored
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// UsageRecorder receives a record for every generation that reaches Closed.
type UsageRecorder interface {
	Insert(rec usage.Record) error
}

// Options carries the per-generation callbacks. All callbacks are optional
// and are invoked synchronously from the generation goroutine.
type Options struct {
	// OnChunk receives each content delta verbatim as it arrives.
	OnChunk func(content string)
	// OnComplete receives the assistant message id after the conversation
	// has been persisted.
	OnComplete func(messageID int)
	// OnError is invoked exactly once when the exchange fails after it has
	// started; the same error is also returned, and callers must not treat
	// the callback as the only signal. Precondition failures (missing
	// message, wrong role, unresolvable provider, unjoinable URL) only
	// return the error.
	OnError func(err error)
}

// Engine generates streaming responses. Repo and Resolver are required;
// Client, Limiter and Usage are optional.
type Engine struct {
	Repo     *storage.ConversationStore
	Resolver provider.Resolver

	// Client is the HTTP client used for streaming requests. Streaming
	// responses have no overall deadline; cancellation comes from the
	// caller's context. Defaults to http.DefaultClient.
	Client *http.Client

	// Limiter paces request opens across generations. Nil means no pacing.
	Limiter *rate.Limiter

	// Usage, when set, records every generation that reaches Closed.
	// Recording failures are logged and never propagate.
	Usage UsageRecorder
}

// request is the JSON body of the streaming POST.
type request struct {
	Model    string `json:"model"`
	Messages []Turn `json:"messages"`
	Stream   bool   `json:"stream"`
}

// GenerateResponse streams a completion for the USER message with the given
// id and appends the result to conv as an ASSISTANT message.
//
// On success the conversation is persisted exactly once, and the assistant
// message carries one RESPONSE fragment holding the full accumulated content,
// status FINISHED, and a usage counter set to the content's character length.
// On any failure the conversation is not persisted; the WIP assistant
// message, if already created, remains only in the in-memory conv.
func (e *Engine) GenerateResponse(ctx context.Context, conv *model.Conversation, messageID int, providerID, modelID string, opts Options) error {
	state := StateInit

	fail := func(err error) error {
		log.Printf("generation for conversation %s failed in state %s: %v", conv.ID, state, err)
		state = StateErrored
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return err
	}

	// Preconditions fail before the exchange starts and never reach the
	// error callback.
	target := conv.FindMessage(messageID)
	if target == nil {
		return fmt.Errorf("%w: %d", ErrMessageNotFound, messageID)
	}
	if target.Role != model.RoleUser {
		return fmt.Errorf("%w: message %d has role %s", ErrInvalidRole, messageID, target.Role)
	}

	cfg, ok := e.Resolver.ProviderByID(providerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}

	requestURL, err := provider.RequestURL(cfg)
	if err != nil {
		return err
	}

	// The transcript is built before the assistant message is appended, so
	// the new WIP message never echoes into its own request context.
	transcript := BuildTranscript(conv)

	assistant := model.CreateMessage(conv, model.RoleAssistant, modelID, cfg.ID, cfg.Name, &messageID, model.StatusWIP)

	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	state = StateOpen
	openedAt := time.Now()

	body, err := json.Marshal(request{Model: modelID, Messages: transcript, Stream: true})
	if err != nil {
		return fail(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diag, _ := io.ReadAll(resp.Body)
		return fail(&TransportError{Status: resp.StatusCode, Body: string(diag)})
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		diag, _ := io.ReadAll(resp.Body)
		return fail(&TransportError{Status: resp.StatusCode, Body: string(diag)})
	}

	state = StateStreaming

	content, err := e.consume(ctx, resp.Body, opts.OnChunk)
	if err != nil {
		return fail(err)
	}

	// Close: land the accumulated content and persist exactly once.
	// Elapsed is rounded, not truncated, so a 1.6s exchange reports 2.
	elapsed := int(math.Round(time.Since(openedAt).Seconds()))
	model.CreateMessageFragment(assistant, model.FragmentResponse, content, elapsed)
	assistant.Status = model.StatusFinished
	assistant.AccumulatedTokenUsage = utf8.RuneCountInString(content)

	if err := e.Repo.Save(conv); err != nil {
		return fail(fmt.Errorf("failed to persist generated response: %w", err))
	}
	state = StateClosed

	if opts.OnComplete != nil {
		opts.OnComplete(assistant.ID)
	}

	if e.Usage != nil {
		rec := usage.Record{
			ConversationID: conv.ID,
			MessageID:      assistant.ID,
			Provider:       cfg.ID,
			Model:          modelID,
			Chars:          utf8.RuneCountInString(content),
			ElapsedSeconds: elapsed,
		}
		if err := e.Usage.Insert(rec); err != nil {
			log.Printf("failed to record usage for conversation %s: %v", conv.ID, err)
		}
	}

	return nil
}

// consume reads the event stream until a terminal marker or EOF, forwarding
// each content delta and returning the accumulated content.
func (e *Engine) consume(ctx context.Context, body io.Reader, onChunk func(string)) (string, error) {
	reader := NewSSEReader(body)
	var accumulated strings.Builder

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		eventType, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return accumulated.String(), nil
			}
			return "", fmt.Errorf("stream read failed: %w", err)
		}

		// Terminal markers: a "done" event or the [DONE] sentinel.
		if eventType == "done" || bytes.Equal(data, []byte("[DONE]")) {
			return accumulated.String(), nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Malformed events are skipped, not fatal.
			log.Printf("skipping malformed stream event: %v", err)
			continue
		}

		if content := chunk.GetContent(); content != "" {
			accumulated.WriteString(content)
			if onChunk != nil {
				onChunk(content)
			}
		}
	}
}
