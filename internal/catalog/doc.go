// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog manages the persistent list of conversations.
//
// The Catalog holds the ordered conversation summaries and the active
// conversation id. It coordinates with the conversation store when the
// active conversation changes: selecting a conversation loads it from
// the backend (or the local cache when offline) and replaces the
// store's contents.
//
// Titles come from the server when it assigns one; otherwise they are
// derived from the first user message, normalized and truncated.
package catalog
