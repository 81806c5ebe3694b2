// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the platform backend.
//
// It issues authenticated requests (bearer token from the credential
// store), exposes the conversation and app endpoints, and opens the
// newline-delimited JSON event stream that carries assistant replies
// and tool-call activity during a turn.
package api
