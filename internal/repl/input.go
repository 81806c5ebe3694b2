// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package repl

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/forgedeck/internal/config"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// Input wraps liner with persistent history, giving the REPL arrow-key
// navigation and line editing.
type Input struct {
	line        *liner.State
	historyFile string
}

// NewInput creates an Input with history loaded from the config
// directory.
func NewInput() *Input {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &Input{
		line:        line,
		historyFile: filepath.Join(filepath.Dir(config.DefaultPath()), "repl_history"),
	}
	in.loadHistory()
	return in
}

func (in *Input) loadHistory() {
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
}

// ReadLine reads one line with the given prompt. Non-empty input is
// appended to history.
func (in *Input) ReadLine(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

func (in *Input) saveHistory() {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	in.line.WriteHistory(f)
}

// Close persists history and restores the terminal.
func (in *Input) Close() {
	in.saveHistory()
	in.line.Close()
}
