// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero limit", "hello", 0, ""},
		{"tiny limit", "hello", 2, "he"},
		{"multibyte preserved", "héllo wörld", 8, "héllo..."},
		{"cjk preserved", "こんにちは世界", 5, "こん..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateRunes(tc.input, tc.maxRunes); got != tc.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.maxRunes, got, tc.want)
			}
		})
	}
}

func TestTruncateWidth_CJK(t *testing.T) {
	// Each CJK rune is two columns wide; six columns fit three runes.
	got := TruncateWidth("こんにちは", 6)
	if got == "こんにちは" {
		t.Fatalf("TruncateWidth should have truncated, got %q", got)
	}
	// ASCII stays untouched when it fits.
	if got := TruncateWidth("hello", 10); got != "hello" {
		t.Errorf("TruncateWidth(hello, 10) = %q", got)
	}
}

func TestCollapseSpace(t *testing.T) {
	got := CollapseSpace("  line one\r\nline two\n")
	want := "line one line two"
	if got != want {
		t.Errorf("CollapseSpace = %q, want %q", got, want)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := AtomicWriteFile(path, []byte(`{"ok":true}`), 0o600); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("content = %q", data)
	}

	// Overwrite replaces the whole file.
	if err := AtomicWriteFile(path, []byte("v2"), 0o600); err != nil {
		t.Fatalf("AtomicWriteFile overwrite: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, got %d", len(entries))
	}
}
