// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/forgedeck/internal/api"
)

// =============================================================================
// CONVERSATION EXPORT
// =============================================================================

// ExportMarkdown renders the conversation as Markdown with metadata,
// timestamps, and role labels.
func (c *Catalog) ExportMarkdown(ctx context.Context, id string) (string, error) {
	conv, err := c.load(ctx, id)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	title := conv.Title
	if title == "" {
		title = conv.ID
	}
	sb.WriteString("# " + title + "\n\n")
	if !conv.CreatedAt.IsZero() {
		sb.WriteString("Created: " + conv.CreatedAt.Format(time.RFC3339) + "\n\n")
	}
	if conv.AppID != "" {
		sb.WriteString("App context: " + conv.AppID + "\n\n")
	}
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		role := "**User**"
		switch msg.Role {
		case "assistant":
			role = "**Assistant**"
		case "system":
			role = "**System**"
		}
		sb.WriteString(role + " (" + msg.CreatedAt.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String(), nil
}

// ExportJSON renders the conversation as pretty-printed JSON.
func (c *Catalog) ExportJSON(ctx context.Context, id string) ([]byte, error) {
	conv, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(conv, "", "  ")
}

// load fetches the conversation, preferring the backend and falling
// back to the cache offline.
func (c *Catalog) load(ctx context.Context, id string) (*api.Conversation, error) {
	conv, err := c.transport.LoadConversation(ctx, id)
	if err == nil {
		return conv, nil
	}
	if c.cache != nil {
		if cached, cacheErr := c.cache.GetConversation(id); cacheErr == nil && cached != nil {
			return cached, nil
		}
	}
	return nil, err
}
