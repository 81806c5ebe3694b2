// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// CODE BLOCK EXTRACTION
// =============================================================================

// CodeBlock is one fenced code block lifted from an assistant message.
type CodeBlock struct {
	Language string
	Code     string
}

// ExtractCodeBlocks pulls fenced code blocks out of markdown. It is the
// hook behind the assistant-finalized callback so collaborators can
// offer the blocks for copying.
func ExtractCodeBlocks(markdown string) []CodeBlock {
	var blocks []CodeBlock
	lines := strings.Split(markdown, "\n")

	inBlock := false
	var lang string
	var code []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inBlock {
				blocks = append(blocks, CodeBlock{
					Language: lang,
					Code:     strings.Join(code, "\n"),
				})
				inBlock = false
				code = nil
				continue
			}
			inBlock = true
			lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			continue
		}
		if inBlock {
			code = append(code, line)
		}
	}
	// An unterminated fence is dropped: the content is still streaming
	// or malformed, not a block.
	return blocks
}

// Highlight applies terminal syntax highlighting to a code block. The
// original text is returned when highlighting fails.
func (b CodeBlock) Highlight() string {
	code := strings.TrimSpace(b.Code)

	lexer := lexers.Get(b.Language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
