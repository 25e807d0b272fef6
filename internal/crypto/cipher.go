// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package crypto implements the model cipher: key derivation from a
// configured secret and authenticated symmetric encryption of byte streams.
//
// Scheme:
//
//	key    = DeriveKey(secret)            (passphrase or ready-made key)
//	blob   = nonce ‖ AES-256-GCM(plaintext)
//	error  = ErrIntegrity on any authentication failure
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyLen is the raw symmetric key size: 32 bytes (256 bits).
	keyLen = 32

	// kdfIterations is the PBKDF2 iteration count. Part of the on-disk
	// format contract: changing it invalidates every existing artifact
	// encrypted under a derived key.
	kdfIterations = 100_000
)

// kdfSalt is fixed on purpose: the same passphrase must yield the same key
// across builds so that artifacts encrypted by the build pipeline stay
// decryptable. The secret itself is the protection boundary.
var kdfSalt = []byte("diana_breast_cancer_detection_2025")

// DeriveKey turns a configured secret into a usable encryption key.
//
// If secret already decodes to a valid 32-byte base64url key it is returned
// unchanged, letting operators supply either a raw passphrase or a
// pre-generated key interchangeably. Otherwise the key is derived via
// PBKDF2-HMAC-SHA256 with the fixed salt and iteration count above and
// returned base64url-encoded.
func DeriveKey(secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	if raw, err := base64.URLEncoding.DecodeString(string(secret)); err == nil && len(raw) == keyLen {
		return string(secret), nil
	}

	raw := pbkdf2.Key(secret, kdfSalt, kdfIterations, keyLen, sha256.New)
	return base64.URLEncoding.EncodeToString(raw), nil
}

// GenerateKey reads 32 random bytes from the OS CSPRNG and returns them as
// a base64url-encoded encryption key. Returns an error if the random read
// fails.
func GenerateKey() (string, error) {
	raw := make([]byte, keyLen)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Cipher performs authenticated encryption under a single derived key.
// The raw key lives only in process memory for the Cipher's lifetime and is
// never persisted.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher constructs a [Cipher] from a configured secret (passphrase or
// base64url key, see [DeriveKey]).
func NewCipher(secret []byte) (*Cipher, error) {
	encoded, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil || len(raw) != keyLen {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with AES-256-GCM. A random 12-byte nonce is
// prepended to the ciphertext so the decryption side can locate it:
// blob = nonce ‖ ciphertext. Returns an error if the random nonce read
// fails.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt opens a blob produced by [Cipher.Encrypt]. The blob must be at
// least as long as the GCM nonce (12 bytes).
//
// Any bit-flip anywhere in the blob, and any key mismatch, fails the
// authentication check and returns [ErrIntegrity]. Partial or garbage
// plaintext is never returned.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrIntegrity)
	}

	// Split the blob into nonce and actual ciphertext.
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	return plaintext, nil
}
