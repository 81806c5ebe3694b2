// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/forgedeck/internal/api"
	"github.com/jeranaias/forgedeck/internal/conversation"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Transport is the backend surface the catalog needs.
type Transport interface {
	ListConversations(ctx context.Context) ([]api.ConversationSummary, error)
	LoadConversation(ctx context.Context, id string) (*api.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}

// Cache persists summaries and loaded conversations locally so the
// sidebar is populated before the first backend round-trip and history
// stays browsable offline. Implementations may be nil-safe no-ops.
type Cache interface {
	PutSummaries(summaries []api.ConversationSummary) error
	GetSummaries() ([]api.ConversationSummary, error)
	PutConversation(conv *api.Conversation) error
	GetConversation(id string) (*api.Conversation, error)
	DeleteConversation(id string) error
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog holds the ordered conversation summaries and the active id.
type Catalog struct {
	transport Transport
	store     *conversation.Store
	cache     Cache // may be nil

	maxTitleLen int

	mu        sync.Mutex
	summaries []api.ConversationSummary
	activeID  string

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// New creates a catalog. cache may be nil.
func New(transport Transport, store *conversation.Store, cache Cache, maxTitleLen int) *Catalog {
	return &Catalog{
		transport:   transport,
		store:       store,
		cache:       cache,
		maxTitleLen: maxTitleLen,
		subs:        make(map[int]func()),
	}
}

// Subscribe registers a callback invoked after each catalog change and
// returns an unsubscribe function.
func (c *Catalog) Subscribe(fn func()) func() {
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

func (c *Catalog) notify() {
	c.subMu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// WarmStart seeds the summary list from the local cache. Errors are
// returned but leave the catalog usable; a Refresh supersedes the seed.
func (c *Catalog) WarmStart() error {
	if c.cache == nil {
		return nil
	}
	summaries, err := c.cache.GetSummaries()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.summaries = summaries
	c.mu.Unlock()

	c.notify()
	return nil
}

// Refresh reloads the full summary list from the backend.
func (c *Catalog) Refresh(ctx context.Context) error {
	summaries, err := c.transport.ListConversations(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})

	c.mu.Lock()
	c.summaries = summaries
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.PutSummaries(summaries); err != nil {
			c.notify()
			return err
		}
	}
	c.notify()
	return nil
}

// Select makes id the active conversation, loading its messages into
// the store. Selecting the already-active id is a no-op. When the
// backend is unreachable the cached copy, if any, is served instead.
func (c *Catalog) Select(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.activeID == id {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conv, err := c.transport.LoadConversation(ctx, id)
	if err != nil {
		if c.cache == nil || !errors.Is(err, api.ErrNetwork) {
			return err
		}
		cached, cacheErr := c.cache.GetConversation(id)
		if cacheErr != nil || cached == nil {
			return err
		}
		conv = cached
	} else if c.cache != nil {
		// Keep the offline copy current; a cache write failure must
		// not fail the selection.
		_ = c.cache.PutConversation(conv)
	}

	msgs := make([]*conversation.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msgs = append(msgs, conversation.FromAPI(m))
	}
	c.store.Replace(msgs)

	c.mu.Lock()
	c.activeID = id
	c.mu.Unlock()

	c.notify()
	return nil
}

// NewConversation enters the empty state: no active id, empty store.
// Persistence is deferred until the first successful turn creates the
// conversation server-side.
func (c *Catalog) NewConversation() {
	c.store.Reset()

	c.mu.Lock()
	c.activeID = ""
	c.mu.Unlock()

	c.notify()
}

// Delete removes the conversation locally and from the server. When
// the active conversation is deleted the next most recent one becomes
// active; with none left the catalog enters the empty state.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.transport.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.DeleteConversation(id)
	}

	c.mu.Lock()
	for i, s := range c.summaries {
		if s.ID == id {
			c.summaries = append(c.summaries[:i], c.summaries[i+1:]...)
			break
		}
	}
	wasActive := c.activeID == id
	var next string
	if wasActive && len(c.summaries) > 0 {
		next = c.summaries[0].ID
	}
	c.mu.Unlock()

	if !wasActive {
		c.notify()
		return nil
	}
	if next == "" {
		c.NewConversation()
		return nil
	}
	return c.Select(ctx, next)
}

// Adopt registers a server-created conversation: a summary is
// prepended and the new id becomes active. Title may be empty; it is
// derived at finalize time.
func (c *Catalog) Adopt(id, title string) {
	c.mu.Lock()
	c.summaries = append([]api.ConversationSummary{{
		ID:           id,
		Title:        title,
		LastActivity: time.Now(),
	}}, c.summaries...)
	c.activeID = id
	c.mu.Unlock()

	c.notify()
}

// Touch refreshes the active conversation's last-activity timestamp,
// moves it to the head, and derives a title from the first user
// message when the server never assigned one.
func (c *Catalog) Touch(id string) {
	c.mu.Lock()
	idx := -1
	for i, s := range c.summaries {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		c.mu.Unlock()
		return
	}

	entry := c.summaries[idx]
	entry.LastActivity = time.Now()
	if entry.Title == "" {
		entry.Title = DeriveTitle(c.store.FirstUserMessage(), c.maxTitleLen)
	}
	c.summaries = append(c.summaries[:idx], c.summaries[idx+1:]...)
	c.summaries = append([]api.ConversationSummary{entry}, c.summaries...)
	c.mu.Unlock()

	c.notify()
}

// Search returns the summaries whose title contains query,
// case-insensitively. An empty query returns everything.
func (c *Catalog) Search(query string) []api.ConversationSummary {
	query = strings.ToLower(strings.TrimSpace(query))

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]api.ConversationSummary, 0, len(c.summaries))
	for _, s := range c.summaries {
		if query == "" || strings.Contains(strings.ToLower(s.Title), query) {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// READS
// =============================================================================

// Summaries returns a snapshot of the ordered summary list.
func (c *Catalog) Summaries() []api.ConversationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.ConversationSummary(nil), c.summaries...)
}

// ActiveID returns the active conversation id, "" in the empty state.
func (c *Catalog) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}
