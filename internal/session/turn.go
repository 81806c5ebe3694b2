// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/conversation"
)

// =============================================================================
// TURN EXECUTION
// =============================================================================

// runTurn owns the stream for one turn: it opens it, routes events,
// watches for inactivity, and drives the terminal transition. It is
// the only goroutine reading the stream; every mutation goes through a
// gen-checked method so a cancelled turn cannot touch anything.
func (c *Controller) runTurn(ctx context.Context, gen int, conversationID, text, appContext, assistantID string) {
	stream, err := c.transport.OpenStream(ctx, conversationID, text, appContext)
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled while connecting
		}
		c.failTurn(gen, err, false)
		return
	}
	defer stream.Close()

	events := make(chan api.Event)
	recvErr := make(chan error, 1)
	go func() {
		for {
			evt, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	started := time.Now()
	stats := &conversation.Stats{}
	var serverID string
	midStream := false

	watchdog := time.NewTimer(c.inactivity)
	defer watchdog.Stop()

	for {
		select {
		case evt := <-events:
			if !watchdog.Stop() {
				select {
				case <-watchdog.C:
				default:
				}
			}
			watchdog.Reset(c.inactivity)

			if !midStream {
				midStream = true
				stats.FirstEvent = time.Since(started)
				c.setState(gen, StateStreaming)
			}

			if evt.Kind == api.EventError {
				c.failTurn(gen, api.ErrorFromEvent(evt), true)
				return
			}
			if evt.Kind == api.EventDelta {
				stats.Deltas++
			}
			if evt.Kind == api.EventAssistantComplete {
				serverID = evt.MessageID
			}
			c.handleEvent(gen, assistantID, evt)

		case err := <-recvErr:
			if errors.Is(err, io.EOF) {
				stats.Duration = time.Since(started)
				c.finalizeTurn(gen, assistantID, serverID, stats)
				return
			}
			if ctx.Err() != nil {
				return // cancelled; the read error is fallout
			}
			c.failTurn(gen, err, midStream)
			return

		case <-watchdog.C:
			c.failTurn(gen, &api.Error{Kind: api.KindTimeout, Message: "no stream activity"}, midStream)
			return

		case <-ctx.Done():
			return
		}
	}
}

// =============================================================================
// GEN-CHECKED TRANSITIONS
// =============================================================================

// setState applies a state transition if the turn is still current.
func (c *Controller) setState(gen int, st State) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = st
	c.mu.Unlock()

	c.notifyState()
}

// handleEvent routes one stream event into the store, tracker, and
// catalog. Events from stale turns are dropped.
func (c *Controller) handleEvent(gen int, assistantID string, evt api.Event) {
	var navigate string

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	switch evt.Kind {
	case api.EventDelta:
		c.store.ApplyDelta(assistantID, evt.Text)

	case api.EventToolStart:
		c.tracker.Start(evt.CallID, evt.Tool, evt.Input)
		c.store.AttachTool(assistantID, evt.CallID)

	case api.EventToolResult:
		// A failed tool call never terminates the turn; it is
		// recorded on the invocation and the assistant continues.
		c.tracker.Finish(evt.CallID, evt.Success, evt.Payload)
		if evt.Success {
			if inv := c.tracker.Get(evt.CallID); inv != nil && inv.Tool == "create_app" {
				navigate = inv.URL()
			}
		}

	case api.EventConversationCreated:
		c.catalog.Adopt(evt.ConversationID, evt.Title)
	}
	c.mu.Unlock()

	if navigate != "" && c.hooks.Navigate != nil {
		c.hooks.Navigate(navigate)
	}
}

// finalizeTurn handles the natural stream end: finalize the assistant
// message, refresh catalog activity, return to idle.
func (c *Controller) finalizeTurn(gen int, assistantID, serverID string, stats *conversation.Stats) {
	c.setState(gen, StateFinalizing)

	var finalized *conversation.Message

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.store.FinalizeAssistant(assistantID, serverID, stats)
	if c.abort != nil {
		c.abort()
		c.abort = nil
	}
	c.catalog.Touch(c.catalog.ActiveID())
	c.state = StateIdle

	if c.hooks.OnAssistantFinalized != nil {
		finalID := assistantID
		if serverID != "" {
			finalID = serverID
		}
		for _, m := range c.store.Messages() {
			if m.ID == finalID {
				finalized = m
				break
			}
		}
	}
	c.mu.Unlock()

	c.notifyState()
	if finalized != nil {
		c.hooks.OnAssistantFinalized(finalized)
	}
}

// failTurn applies the error policy and moves to the error state.
func (c *Controller) failTurn(gen int, err error, midStream bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++ // nothing further from this turn applies
	if c.abort != nil {
		c.abort()
		c.abort = nil
	}

	kind := api.KindOf(err)
	dropUser := kind == api.KindValidation || kind == api.KindAppContext
	if kind == api.KindAppContext {
		c.appContext = ""
	}
	c.store.RollbackPending(dropUser)

	notice := errorMessage(err)
	if midStream {
		c.store.AppendSystem(notice)
	}

	c.state = StateError
	c.lastErr = err
	c.mu.Unlock()

	c.notifyState()
	c.hooks.notify("error", notice)
	if kind == api.KindAuth && c.hooks.RequestSignIn != nil {
		c.hooks.RequestSignIn()
	}
}
