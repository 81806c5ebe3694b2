// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the in-memory model of the active conversation.
//
// The Store is the single source of truth for the visible message list
// during a turn. The session controller mutates it as stream events
// arrive; presentation layers observe it through Subscribe and never
// mutate it directly.
//
// # Key Types
//
//   - Store: ordered message list with a pending-assistant slot
//   - Message: single message with role, content, and tool attachments
//   - Change: change notification delivered to subscribers
//
// # Invariants
//
// Message identifiers are unique within a conversation. Roles alternate
// user then assistant after the first user message, with system notices
// allowed in between. An assistant message is mutable only while it is
// streaming; once finalized its body is immutable. Identifier renames
// at finalize time preserve tool attachments.
package conversation
