// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptToken reads a bearer token from the terminal without echoing it
// and stores it under TokenKey. Used by first-run setup and re-auth.
func PromptToken(store Store) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("cannot prompt for token: stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Platform API token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return errors.New("empty token")
	}
	return store.Set(TokenKey, token)
}
