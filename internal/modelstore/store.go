// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package modelstore manages the at-rest encrypted model artifact.
//
// The runtime path of choice is [Store.DecryptToMemory]: decrypted weights
// exist only in process memory for the lifetime of the runtime session.
// The on-disk fallback [Store.DecryptToFile] must always be paired with
// [Store.SecureErase] once the plaintext copy is no longer needed.
package modelstore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dianalab/diana/internal/crypto"
	"github.com/dianalab/diana/internal/logger"
)

// Store encrypts and decrypts model artifacts with a single process-wide
// cipher.
type Store struct {
	cipher *crypto.Cipher
	logger *logger.Logger
}

// NewStore constructs a [Store] over the given cipher.
func NewStore(cipher *crypto.Cipher, logger *logger.Logger) *Store {
	return &Store{
		cipher: cipher,
		logger: logger,
	}
}

// EncryptFile reads the plaintext file at sourcePath fully into memory,
// encrypts it, and writes the authenticated ciphertext to destPath.
// Used only offline by the model owner, never at runtime.
func (s *Store) EncryptFile(sourcePath, destPath string) error {
	plaintext, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, sourcePath)
		}
		return fmt.Errorf("read source file: %w", err)
	}

	blob, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt artifact: %w", err)
	}

	if err := os.WriteFile(destPath, blob, 0o600); err != nil {
		return fmt.Errorf("write encrypted artifact: %w", err)
	}

	s.logger.Info().Str("source", sourcePath).Str("dest", destPath).Msg("artifact encrypted")
	return nil
}

// DecryptToMemory reads the ciphertext at encryptedPath, decrypts it, and
// returns the plaintext without ever touching disk.
//
// A missing file surfaces as [ErrArtifactMissing]; a tampered file or a
// wrong key surfaces as [crypto.ErrIntegrity]. The caller can always tell
// the two apart.
func (s *Store) DecryptToMemory(encryptedPath string) ([]byte, error) {
	blob, err := os.ReadFile(encryptedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, encryptedPath)
		}
		return nil, fmt.Errorf("read encrypted artifact: %w", err)
	}

	plaintext, err := s.cipher.Decrypt(blob)
	if err != nil {
		s.logger.Error().Err(err).Str("path", encryptedPath).Msg("artifact decryption failed")
		return nil, err
	}

	s.logger.Info().Str("path", encryptedPath).Int("size", len(plaintext)).Msg("artifact decrypted to memory")
	return plaintext, nil
}

// DecryptToFile is the fallback path that writes the decrypted artifact to
// destPath with owner-only permissions. Callers MUST pair it with
// [Store.SecureErase] on every exit path once the plaintext file is no
// longer needed.
func (s *Store) DecryptToFile(encryptedPath, destPath string) error {
	plaintext, err := s.DecryptToMemory(encryptedPath)
	if err != nil {
		return err
	}

	if err := os.WriteFile(destPath, plaintext, 0o600); err != nil {
		return fmt.Errorf("write decrypted artifact: %w", err)
	}

	s.logger.Warn().Str("path", destPath).Msg("decrypted artifact written to disk, secure erase required")
	return nil
}

// VerifyIntegrity attempts a full decrypt of the artifact at encryptedPath
// and reports whether it succeeded, without retaining the output. Used for
// post-build sanity checks.
func (s *Store) VerifyIntegrity(encryptedPath string) bool {
	_, err := s.DecryptToMemory(encryptedPath)
	return err == nil
}

// SecureErase overwrites the file's full byte length with cryptographically
// random data before deletion, so that no recoverable plaintext is left in
// block storage after unlink. Erasing a file that no longer exists is not
// an error.
func (s *Store) SecureErase(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat file for erase: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open file for erase: %w", err)
	}

	_, copyErr := io.CopyN(f, rand.Reader, info.Size())
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("overwrite file: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("decrypted artifact securely erased")
	return nil
}
