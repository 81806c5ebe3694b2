// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local SQLite cache for the conversation
// catalog.
//
// The cache keeps conversation summaries and the last-loaded
// conversations on disk so the sidebar is populated before the first
// backend round-trip and history stays browsable offline. It is
// reconciled on every successful refresh; the backend stays the source
// of truth.
package storage
