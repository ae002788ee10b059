// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credentials protects the platform API key at rest.
//
// Keys are encrypted with AES-256-GCM under a key derived from a user
// passphrase via PBKDF2-SHA-256. Encrypted values carry an "ENC:" prefix
// so plaintext and protected keys can coexist in the same config field.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// EncryptedPrefix marks a value as encrypted (format: ENC:base64(nonce|ciphertext|tag))
const EncryptedPrefix = "ENC:"

// NonceSize is the size of the nonce/IV for AES-GCM (12 bytes / 96 bits)
const NonceSize = 12

// KeySize is the size of the AES-256 key (32 bytes / 256 bits)
const KeySize = 32

// SaltSize is the size of the salt for key derivation (32 bytes)
const SaltSize = 32

// PBKDF2Iterations is the number of iterations for PBKDF2-SHA-256 key
// derivation. OWASP 2023 recommends 600,000+ to resist brute force on
// modern hardware.
const PBKDF2Iterations = 600000

// checkPlaintext is a known value encrypted at initialization so a wrong
// passphrase is detected at unlock instead of producing garbage keys.
const checkPlaintext = "perpdeck-credentials-v1"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotInitialized indicates the keyring has no passphrase set up yet.
	ErrNotInitialized = errors.New("credentials not initialized: run 'perpdeck keys init'")
	// ErrLocked indicates the keyring exists but has not been unlocked.
	ErrLocked = errors.New("credentials locked: passphrase required")
	// ErrInvalidCiphertext indicates the ciphertext format is invalid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates a wrong passphrase or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: wrong passphrase or tampered data")
)

// =============================================================================
// HELPERS
// =============================================================================

// ZeroBytes zeros sensitive byte slices to limit memory disclosure via
// crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// DeriveKey derives an encryption key from a passphrase and salt using
// PBKDF2-SHA-256 (NIST SP 800-132).
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// IsEncrypted reports whether a config value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// =============================================================================
// KEYRING
// =============================================================================

// Keyring encrypts and decrypts credential values under a passphrase-derived
// key. The salt and a passphrase check value live in dir; the derived key is
// never written to disk.
type Keyring struct {
	mu   sync.RWMutex
	dir  string
	aead cipher.AEAD
}

// NewKeyring creates a keyring rooted at dir (typically ~/.perpdeck).
func NewKeyring(dir string) *Keyring {
	return &Keyring{dir: dir}
}

func (k *Keyring) saltPath() string  { return filepath.Join(k.dir, "keyring.salt") }
func (k *Keyring) checkPath() string { return filepath.Join(k.dir, "keyring.check") }

// Initialized reports whether a passphrase has been set up.
func (k *Keyring) Initialized() bool {
	_, err := os.Stat(k.saltPath())
	return err == nil
}

// Unlocked reports whether the keyring is ready to encrypt and decrypt.
func (k *Keyring) Unlocked() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.aead != nil
}

// Initialize sets up the keyring with a new passphrase. Fails if a salt
// already exists; use Unlock for an existing keyring.
func (k *Keyring) Initialize(passphrase string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, err := os.Stat(k.saltPath()); err == nil {
		return fmt.Errorf("keyring already initialized at %s", k.dir)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}

	key := DeriveKey(passphrase, salt)
	// SECURITY: Zero key material to prevent memory disclosure.
	defer ZeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(k.saltPath(), salt, 0600); err != nil {
		return fmt.Errorf("failed to save salt: %w", err)
	}

	k.aead = aead

	check, err := k.sealLocked([]byte(checkPlaintext))
	if err != nil {
		k.aead = nil
		_ = os.Remove(k.saltPath())
		return err
	}
	if err := util.AtomicWriteFile(k.checkPath(), check, 0600); err != nil {
		k.aead = nil
		_ = os.Remove(k.saltPath())
		return fmt.Errorf("failed to save check value: %w", err)
	}

	return nil
}

// Unlock derives the key from the passphrase and verifies it against the
// stored check value. Returns ErrDecryptionFailed for a wrong passphrase.
func (k *Keyring) Unlock(passphrase string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	salt, err := os.ReadFile(k.saltPath())
	if err != nil {
		return ErrNotInitialized
	}

	key := DeriveKey(passphrase, salt)
	// SECURITY: Zero key material to prevent memory disclosure.
	defer ZeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return err
	}

	check, err := os.ReadFile(k.checkPath())
	if err != nil {
		return ErrNotInitialized
	}
	if _, err := open(aead, check); err != nil {
		return ErrDecryptionFailed
	}

	k.aead = aead
	return nil
}

// Lock discards the in-memory key.
func (k *Keyring) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.aead = nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}

// =============================================================================
// ENCRYPT / DECRYPT
// =============================================================================

// sealLocked encrypts plaintext as nonce || ciphertext || tag. Caller holds
// at least a read lock and has checked k.aead.
func (k *Keyring) sealLocked(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(aead cipher.AEAD, data []byte) ([]byte, error) {
	if len(data) < NonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptString encrypts a credential value for storage in the config file.
func (k *Keyring) EncryptString(value string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.aead == nil {
		return "", ErrLocked
	}

	sealed, err := k.sealLocked([]byte(value))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString decrypts an "ENC:" value. Plain values pass through
// unchanged so unencrypted configs keep working.
func (k *Keyring) DecryptString(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.aead == nil {
		return "", ErrLocked
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := open(k.aead, data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
