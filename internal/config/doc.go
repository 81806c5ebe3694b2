// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for forgedeck.
//
// Configuration is read from ~/.forgedeck/config.toml with built-in
// defaults and environment variable overrides. A file watcher can
// reload the configuration while the console is running.
package config
