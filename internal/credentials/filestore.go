// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/forgedeck/internal/util"
)

const (
	// encryptedPrefix marks a stored value as encrypted:
	// ENC:base64(salt | nonce | ciphertext-with-tag)
	encryptedPrefix = "ENC:"

	keySize   = 32 // AES-256
	nonceSize = 12 // AES-GCM standard nonce
	saltSize  = 16

	// pbkdf2Iterations hardens the derivation from the master key.
	pbkdf2Iterations = 600_000
)

// FileStore persists credentials in a JSON file with values encrypted
// at rest. The master key lives beside the credential file with 0600
// permissions; both are written atomically.
type FileStore struct {
	mu       sync.Mutex
	path     string
	keyPath  string
	master   []byte
	values   map[string]string // key -> ENC:... value
	loaded   bool
}

// DefaultDir returns the directory forgedeck keeps its credentials in.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".forgedeck")
	}
	return filepath.Join(home, ".forgedeck")
}

// NewFileStore creates a file-backed store under dir (DefaultDir if empty).
// The master key is created on first use.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{
		path:    filepath.Join(dir, "credentials.json"),
		keyPath: filepath.Join(dir, "master.key"),
		values:  make(map[string]string),
	}, nil
}

// Get implements Store, decrypting the stored value.
func (f *FileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return "", err
	}
	enc, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return f.decryptLocked(enc)
}

// Set implements Store, encrypting the value before it touches disk.
func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return err
	}
	enc, err := f.encryptLocked(value)
	if err != nil {
		return err
	}
	f.values[key] = enc
	return f.persistLocked()
}

// Remove implements Store.
func (f *FileStore) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return err
	}
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.persistLocked()
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (f *FileStore) loadLocked() error {
	if f.loaded {
		return nil
	}

	if err := f.loadMasterLocked(); err != nil {
		return err
	}

	data, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &f.values); err != nil {
			return fmt.Errorf("failed to parse credential file: %w", err)
		}
	case os.IsNotExist(err):
		f.values = make(map[string]string)
	default:
		return fmt.Errorf("failed to read credential file: %w", err)
	}

	f.loaded = true
	return nil
}

func (f *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return util.AtomicWriteFile(f.path, data, 0o600)
}

// loadMasterLocked reads the master key, generating one if absent.
func (f *FileStore) loadMasterLocked() error {
	if f.master != nil {
		return nil
	}

	key, err := os.ReadFile(f.keyPath)
	switch {
	case err == nil && len(key) == keySize:
		f.master = key
		return nil
	case err == nil:
		return errors.New("master key file is corrupt")
	case os.IsNotExist(err):
		key = make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate master key: %w", err)
		}
		if err := util.AtomicWriteFile(f.keyPath, key, 0o600); err != nil {
			return fmt.Errorf("failed to store master key: %w", err)
		}
		f.master = key
		return nil
	default:
		return fmt.Errorf("failed to read master key: %w", err)
	}
}

// =============================================================================
// ENCRYPTION
// =============================================================================

func (f *FileStore) encryptLocked(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := f.aeadLocked(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	blob := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	return encryptedPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

func (f *FileStore) decryptLocked(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return "", errors.New("stored credential is not encrypted")
	}

	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode credential: %w", err)
	}
	if len(blob) < saltSize+nonceSize+1 {
		return "", errors.New("stored credential is truncated")
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	sealed := blob[saltSize+nonceSize:]

	gcm, err := f.aeadLocked(salt)
	if err != nil {
		return "", err
	}

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plain), nil
}

// aeadLocked derives the per-value AES key from the master key and salt.
func (f *FileStore) aeadLocked(salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key(f.master, salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	return gcm, nil
}
