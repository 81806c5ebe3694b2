// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/conversation"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// State is the session lifecycle state. Exactly one session is active
// per process.
type State string

const (
	StateIdle       State = "idle"
	StateSending    State = "sending"
	StateStreaming  State = "streaming"
	StateFinalizing State = "finalizing"
	StateError      State = "error"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Active reports whether a turn is in flight.
func (s State) Active() bool {
	return s == StateSending || s == StateStreaming || s == StateFinalizing
}

// Snapshot is the observable session state handed to subscribers.
type Snapshot struct {
	State      State
	ActiveID   string
	AppContext string
	Err        error
}

// =============================================================================
// CONTROLLER ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Send while a turn is already in flight
	// or an error is unacknowledged.
	ErrBusy = errors.New("session: a turn is already active")

	// ErrRateLimited is returned by Send when turns are submitted
	// faster than the configured rate.
	ErrRateLimited = errors.New("session: sending too fast, slow down")

	// ErrNothingToRetry is returned by Retry when no user message is
	// waiting for a reply.
	ErrNothingToRetry = errors.New("session: nothing to retry")
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// EventStream is the consumer side of an open turn stream.
type EventStream interface {
	Recv() (api.Event, error)
	Close() error
}

// Transport opens turn streams. conversationID is empty for a fresh
// conversation; appContext is empty when no app is bound.
type Transport interface {
	OpenStream(ctx context.Context, conversationID, text, appContext string) (EventStream, error)
}

// NewAPITransport adapts the platform client to the Transport interface.
func NewAPITransport(client *api.Client) Transport {
	return apiTransport{client}
}

type apiTransport struct {
	client *api.Client
}

func (t apiTransport) OpenStream(ctx context.Context, conversationID, text, appContext string) (EventStream, error) {
	return t.client.OpenStream(ctx, conversationID, text, appContext)
}

// Hooks are the collaborator-provided callbacks. All fields are
// optional; nil hooks are skipped.
type Hooks struct {
	// Notify surfaces a non-blocking message, kind "error" or "info".
	Notify func(kind, message string)

	// Navigate is invoked when a tool result carries the URL of a
	// newly created resource.
	Navigate func(destination string)

	// RequestSignIn is invoked on auth errors so the collaborator can
	// redirect to sign-in.
	RequestSignIn func()

	// OnAssistantFinalized receives each assistant message after the
	// stream completes, e.g. for code block extraction.
	OnAssistantFinalized func(msg *conversation.Message)
}

func (h Hooks) notify(kind, message string) {
	if h.Notify != nil {
		h.Notify(kind, message)
	}
}
