// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/forgedeck/internal/api"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSummariesRoundTrip(t *testing.T) {
	c := testCache(t)

	empty, err := c.GetSummaries()
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now().Truncate(time.Millisecond)
	in := []api.ConversationSummary{
		{ID: "c2", Title: "Newer", LastActivity: now},
		{ID: "c1", Title: "Older", LastActivity: now.Add(-time.Hour)},
	}
	require.NoError(t, c.PutSummaries(in))

	out, err := c.GetSummaries()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[0].ID)
	assert.Equal(t, "c1", out[1].ID)
	assert.True(t, out[0].LastActivity.Equal(now), "LastActivity = %v, want %v", out[0].LastActivity, now)

	// A second Put replaces, never appends.
	require.NoError(t, c.PutSummaries(in[:1]))
	out, err = c.GetSummaries()
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestConversationRoundTrip(t *testing.T) {
	c := testCache(t)

	missing, err := c.GetConversation("ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	conv := &api.Conversation{
		ID:    "c1",
		Title: "Setup",
		Messages: []api.Message{
			{ID: "m1", Role: "user", Content: "hello"},
			{ID: "m2", Role: "assistant", Content: "Hi there."},
		},
	}
	require.NoError(t, c.PutConversation(conv))

	got, err := c.GetConversation("c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Setup", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Hi there.", got.Messages[1].Content)
}

func TestDeleteConversation(t *testing.T) {
	c := testCache(t)

	require.NoError(t, c.PutSummaries([]api.ConversationSummary{{ID: "c1", Title: "t"}}))
	require.NoError(t, c.PutConversation(&api.Conversation{ID: "c1"}))

	require.NoError(t, c.DeleteConversation("c1"))

	got, err := c.GetConversation("c1")
	require.NoError(t, err)
	assert.Nil(t, got, "conversation survived delete")

	summaries, err := c.GetSummaries()
	require.NoError(t, err)
	assert.Empty(t, summaries, "summary survived delete")
}

func TestOpenReusesExistingCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c1.PutSummaries([]api.ConversationSummary{{ID: "c1", Title: "kept"}}))
	require.NoError(t, c1.Close())

	c2, err := Open(path)
	require.NoError(t, err)
	defer c2.Close()

	got, err := c2.GetSummaries()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Title)
}
