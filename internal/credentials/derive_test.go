// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Key derivation and primitive-level tests for the credential keyring.

package credentials

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// KEY DERIVATION TESTS
// =============================================================================

func TestDeriveKeyDeterministic(t *testing.T) {
	password := "correct horse battery staple"
	salt := []byte("0123456789abcdef0123456789abcdef")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)
	require.True(t, bytes.Equal(key1, key2), "same passphrase/salt should derive the same key")

	key3 := DeriveKey(password, []byte("fedcba9876543210fedcba9876543210"))
	require.False(t, bytes.Equal(key1, key3), "different salt should derive a different key")

	key4 := DeriveKey("a different passphrase", salt)
	require.False(t, bytes.Equal(key1, key4), "different passphrase should derive a different key")
}

func TestDeriveKeyLength(t *testing.T) {
	key := DeriveKey("passphrase", []byte("salt"))
	require.Equal(t, KeySize, len(key), "derived key should be %d bytes", KeySize)
}

func TestGenerateSaltUnique(t *testing.T) {
	s1, err := GenerateSalt()
	require.NoError(t, err)
	require.Equal(t, SaltSize, len(s1))

	s2, err := GenerateSalt()
	require.NoError(t, err)
	require.False(t, bytes.Equal(s1, s2), "two salts should never collide")
}

// RELIABILITY: zeroing must clear every byte so key material does not
// linger on the heap longer than necessary.
func TestZeroBytes(t *testing.T) {
	buf := []byte("sensitive key material")
	ZeroBytes(buf)
	for i, b := range buf {
		require.Zerof(t, b, "byte %d not cleared", i)
	}
}

// =============================================================================
// NONCE UNIQUENESS
// =============================================================================

func TestEncryptStringNonceUniqueness(t *testing.T) {
	k := NewKeyring(t.TempDir())
	require.NoError(t, k.Initialize("correct horse battery staple"))

	// Identical plaintexts must never produce identical ciphertexts;
	// a repeated nonce under GCM is catastrophic.
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		enc, err := k.EncryptString("pk-live-abc123")
		require.NoError(t, err)
		require.False(t, seen[enc], "duplicate ciphertext after %d encryptions", i)
		seen[enc] = true
	}
}
