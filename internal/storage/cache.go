// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/forgedeck/internal/api"
)

// SchemaVersion tracks the cache schema for migrations.
const SchemaVersion = 1

const schema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Conversation summaries, in sidebar order
CREATE TABLE IF NOT EXISTS summaries (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    last_activity INTEGER NOT NULL, -- Unix millis
    position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_position ON summaries(position);

-- Last-loaded full conversations, JSON-encoded
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    cached_at INTEGER NOT NULL -- Unix millis
);
`

// Cache is the on-disk catalog cache. Safe for concurrent use; SQLite
// allows one writer, which the connection pool enforces.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns the cache location under the user config dir.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".forgedeck", "cache.db"), nil
}

// Open opens (creating if needed) the cache at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)",
		fmt.Sprint(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// =============================================================================
// SUMMARIES
// =============================================================================

// PutSummaries replaces the cached summary list.
func (c *Cache) PutSummaries(summaries []api.ConversationSummary) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM summaries"); err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		"INSERT INTO summaries (id, title, last_activity, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range summaries {
		if _, err := stmt.Exec(s.ID, s.Title, s.LastActivity.UnixMilli(), i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetSummaries returns the cached summary list in sidebar order.
func (c *Cache) GetSummaries() ([]api.ConversationSummary, error) {
	rows, err := c.db.Query(
		"SELECT id, title, last_activity FROM summaries ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.ConversationSummary
	for rows.Next() {
		var s api.ConversationSummary
		var millis int64
		if err := rows.Scan(&s.ID, &s.Title, &millis); err != nil {
			return nil, err
		}
		s.LastActivity = time.UnixMilli(millis)
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// PutConversation stores a full conversation for offline browsing.
func (c *Cache) PutConversation(conv *api.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO conversations (id, data, cached_at) VALUES (?, ?, ?)",
		conv.ID, string(data), time.Now().UnixMilli())
	return err
}

// GetConversation returns the cached conversation, or nil when absent.
func (c *Cache) GetConversation(id string) (*api.Conversation, error) {
	var data string
	err := c.db.QueryRow(
		"SELECT data FROM conversations WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var conv api.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes the conversation and its summary.
func (c *Cache) DeleteConversation(id string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM summaries WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}
