// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for forgedeck.
//
// It contains reliability helpers (atomic file writes) and
// Unicode-safe string truncation used across the console.
package util
