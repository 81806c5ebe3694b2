// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/forgedeck/internal/util"
)

// DefaultMaxTitleLength bounds derived titles when no configured limit
// is supplied.
const DefaultMaxTitleLength = 60

// DeriveTitle builds a display title from the first user message:
// whitespace collapsed, NFC-normalized, truncated to maxRunes runes.
func DeriveTitle(firstUserMessage string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxTitleLength
	}
	title := util.CollapseSpace(strings.TrimSpace(firstUserMessage))
	title = norm.NFC.String(title)
	if title == "" {
		return "New conversation"
	}
	return util.TruncateRunes(title, maxRunes)
}
