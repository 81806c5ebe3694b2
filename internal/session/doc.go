// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates user turns against the platform assistant.
//
// The Controller drives one turn at a time: it validates input, appends
// the user message, opens the event stream, routes events into the
// conversation store and tool tracker, and handles cancellation, error
// recovery, and completion.
//
// # State Machine
//
// idle → sending → streaming → finalizing → idle. Errors exit to the
// error state and return to idle once acknowledged; user cancellation
// moves streaming directly back to idle. Only one turn is active at a
// time; switching conversations while streaming cancels the prior turn.
//
// # Error Policy
//
// Validation and app-context errors drop the user message (the input
// was the problem); app-context errors additionally clear the bound
// app. Network, timeout, auth, and stream errors keep the user message
// so the turn can be retried. A failed tool call never terminates the
// turn. Errors that occur mid-stream also leave an inline system
// notice in the conversation. Errors surface exactly once through the
// collaborator's Notify hook.
package session
