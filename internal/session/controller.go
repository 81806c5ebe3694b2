// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/catalog"
	"github.com/jeranaias/forgedeck/internal/conversation"
	"github.com/jeranaias/forgedeck/internal/tooltrack"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the controller.
type Options struct {
	// InactivityTimeout aborts a stream after this long without an
	// event (default: 120s).
	InactivityTimeout time.Duration

	// SendRatePerMin caps turn submissions (default: 20/min).
	SendRatePerMin int
}

func (o *Options) fillDefaults() {
	if o.InactivityTimeout == 0 {
		o.InactivityTimeout = 120 * time.Second
	}
	if o.SendRatePerMin == 0 {
		o.SendRatePerMin = 20
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller orchestrates one user turn at a time. All state mutations
// of the store, tracker, and catalog during a turn happen under the
// controller's lock, one event at a time.
type Controller struct {
	transport Transport
	store     *conversation.Store
	tracker   *tooltrack.Tracker
	catalog   *catalog.Catalog
	hooks     Hooks

	limiter    *rate.Limiter
	inactivity time.Duration

	mu         sync.Mutex
	state      State
	appContext string
	lastErr    error
	abort      context.CancelFunc
	// gen counts turns; events from stale generations are dropped,
	// which is how late post-cancel events disappear.
	gen int

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewController creates an idle controller.
func NewController(transport Transport, store *conversation.Store, tracker *tooltrack.Tracker, cat *catalog.Catalog, hooks Hooks, opts Options) *Controller {
	opts.fillDefaults()
	return &Controller{
		transport:  transport,
		store:      store,
		tracker:    tracker,
		catalog:    cat,
		hooks:      hooks,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.SendRatePerMin)), opts.SendRatePerMin),
		inactivity: opts.InactivityTimeout,
		state:      StateIdle,
		subs:       make(map[int]func(Snapshot)),
	}
}

// =============================================================================
// OBSERVABLE STATE
// =============================================================================

// Subscribe registers a snapshot callback fired on every state change
// and returns an unsubscribe function.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the unacknowledged error, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// AppContext returns the bound app id, "" when unbound.
func (c *Controller) AppContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appContext
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		ActiveID:   c.catalog.ActiveID(),
		AppContext: c.appContext,
		Err:        c.lastErr,
	}
}

func (c *Controller) notifyState() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// Send submits a user turn. Preconditions: the session is idle and
// text is non-blank. The turn runs asynchronously; completion is
// observable through Subscribe.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &api.Error{Kind: api.KindValidation, Message: "message is empty"}
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	if _, err := c.store.AppendUser(text); err != nil {
		c.mu.Unlock()
		return &api.Error{Kind: api.KindValidation, Message: "previous message still awaiting a reply", Cause: err}
	}
	c.startTurnLocked(ctx, text)
	c.mu.Unlock()

	c.notifyState()
	return nil
}

// Retry re-sends the retained user message after a recoverable error
// (network, timeout, auth, stream). No new user message is appended.
func (c *Controller) Retry(ctx context.Context) error {
	if !c.limiter.Allow() {
		return ErrRateLimited
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	text := c.pendingUserTextLocked()
	if text == "" {
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	c.startTurnLocked(ctx, text)
	c.mu.Unlock()

	c.notifyState()
	return nil
}

// pendingUserTextLocked returns the text of the trailing user message
// still awaiting an assistant reply. Caller holds c.mu.
func (c *Controller) pendingUserTextLocked() string {
	msgs := c.store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		switch msgs[i].Role {
		case conversation.RoleSystem:
			continue
		case conversation.RoleUser:
			return msgs[i].Content
		default:
			return ""
		}
	}
	return ""
}

// startTurnLocked begins the turn goroutine. Caller holds c.mu.
func (c *Controller) startTurnLocked(ctx context.Context, text string) {
	c.gen++
	gen := c.gen
	c.state = StateSending
	c.lastErr = nil

	assistantID := c.store.BeginAssistant()
	turnCtx, cancel := context.WithCancel(ctx)
	c.abort = cancel

	go c.runTurn(turnCtx, gen, c.catalog.ActiveID(), text, c.appContext, assistantID)
}

// Cancel aborts the in-flight turn, removing the pending assistant
// message but keeping the user message. Idempotent: from idle or error
// it is a no-op, and repeat calls change nothing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.state.Active() {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.abort != nil {
		c.abort()
		c.abort = nil
	}
	c.store.RollbackPending(false)
	c.state = StateIdle
	c.mu.Unlock()

	c.notifyState()
}

// Acknowledge clears an error state back to idle.
func (c *Controller) Acknowledge() {
	c.mu.Lock()
	if c.state != StateError {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.lastErr = nil
	c.mu.Unlock()

	c.notifyState()
}

// SetAppContext binds the conversation to an app, or unbinds with "".
// The reference is weak: the backend rejects the next turn if the app
// disappeared.
func (c *Controller) SetAppContext(appID string) {
	c.mu.Lock()
	c.appContext = appID
	c.mu.Unlock()

	c.notifyState()
}

// SelectConversation makes id active. A turn in flight is implicitly
// cancelled first. Selecting the already-active conversation is a
// no-op.
func (c *Controller) SelectConversation(ctx context.Context, id string) error {
	if c.catalog.ActiveID() == id {
		return nil
	}
	c.Cancel()
	if err := c.catalog.Select(ctx, id); err != nil {
		return err
	}
	c.tracker.Reset()
	c.notifyState()
	return nil
}

// NewConversation enters the empty state, cancelling any turn in flight.
func (c *Controller) NewConversation() {
	c.Cancel()
	c.catalog.NewConversation()
	c.tracker.Reset()
	c.notifyState()
}

// DeleteConversation removes a conversation. Deleting the active one
// cancels any turn in flight first.
func (c *Controller) DeleteConversation(ctx context.Context, id string) error {
	if c.catalog.ActiveID() == id {
		c.Cancel()
	}
	if err := c.catalog.Delete(ctx, id); err != nil {
		return err
	}
	c.notifyState()
	return nil
}

// =============================================================================
// ERROR SURFACING
// =============================================================================

// errorMessage maps a typed error onto the user-facing notice.
func errorMessage(err error) string {
	var apiErr *api.Error
	detail := ""
	if errors.As(err, &apiErr) {
		detail = apiErr.Message
	}

	switch api.KindOf(err) {
	case api.KindAuth:
		return "Your session has expired. Sign in again to continue."
	case api.KindTimeout:
		return "The assistant stopped responding. Retry when ready."
	case api.KindNetwork:
		return "Could not reach the platform. Check your connection and retry."
	case api.KindAppContext:
		if detail != "" {
			return detail + " App context cleared."
		}
		return "The selected app is no longer available. App context cleared."
	case api.KindValidation:
		if detail != "" {
			return detail
		}
		return "The platform rejected the message."
	case api.KindStream:
		return "The assistant stream was interrupted."
	default:
		return err.Error()
	}
}
