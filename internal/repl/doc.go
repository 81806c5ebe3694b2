// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package repl provides the line-oriented console for terminals where
// the full-screen interface is unwanted or unavailable. It drives the
// same session controller, conversation store, and catalog as the TUI,
// rendering stream deltas directly to stdout as they arrive.
package repl
