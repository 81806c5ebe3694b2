// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tooltrack records tool-call activity emitted during a stream.
//
// The Tracker maps callId to an Invocation. A tool_start event inserts
// a pending record; the matching tool_result transitions it exactly
// once to succeeded or failed. Records are never revived and late
// results for unknown callIds are dropped.
//
// Rendering collaborators subscribe by callId and receive change
// notifications, one status card per call.
package tooltrack
