// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the Bubble Tea terminal interface for the console.
//
// The Model is a presentation collaborator: it issues commands to the
// session controller (send, cancel, select, app context) and renders
// the observable core state. It never mutates the conversation store,
// tool tracker, or catalog directly; changes flow in as messages pushed
// through the program's event channel.
//
// Rendering of streamed deltas is batched by a StreamingBuffer at a
// capped frame rate to stay smooth without melting the CPU.
package ui
