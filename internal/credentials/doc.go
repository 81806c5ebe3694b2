// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credentials provides persistent credential storage for forgedeck.
//
// The Store interface is deliberately minimal (get/set/remove) so the
// core can run against an in-memory backing in tests. The file-backed
// implementation encrypts values at rest with AES-256-GCM using a key
// derived from a per-machine master key.
package credentials
