// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore()

	if _, err := s.Get(TokenKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store = %v, want ErrNotFound", err)
	}

	if err := s.Set(TokenKey, "tok-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(TokenKey)
	if err != nil || got != "tok-123" {
		t.Errorf("Get = (%q, %v)", got, err)
	}

	if err := s.Remove(TokenKey); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(TokenKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove = %v, want ErrNotFound", err)
	}

	// Removing a missing key is a no-op.
	if err := s.Remove("nope"); err != nil {
		t.Errorf("Remove missing = %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := s.Set(TokenKey, "secret-token"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Value on disk must not contain the plaintext.
	raw, err := os.ReadFile(filepath.Join(dir, "credentials.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "secret-token") {
		t.Error("credential file contains plaintext token")
	}
	if !strings.Contains(string(raw), "ENC:") {
		t.Error("credential file should hold encrypted values")
	}

	// A fresh store over the same directory decrypts the value.
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, err := s2.Get(TokenKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "secret-token" {
		t.Errorf("Get = %q, want secret-token", got)
	}
}

func TestFileStore_Remove(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove = %v, want ErrNotFound", err)
	}
}

func TestFileStore_MasterKeyPermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "master.key"))
	if err != nil {
		t.Fatalf("Stat master.key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("master.key permissions = %o, want 600", perm)
	}
}
