// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DIANA Project Authors

// Package entitlement decides, per request, whether the caller may have the
// protected model decrypted.
//
// The decision function is pure and free of I/O so it can be tested without
// a backend or a filesystem; the Guard wraps it with the artifact checks.
package entitlement

import (
	"errors"
	"fmt"

	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/modelstore"
)

// ErrDenied is returned when neither a premium account nor remaining free
// quota entitles the caller to the model. It signals an expected business
// outcome, not a technical failure.
var ErrDenied = errors.New("model access denied: no quota and not premium")

// CanDecrypt reports whether model decryption may proceed.
// Premium accounts are always entitled; free accounts are entitled while
// quota remains.
func CanDecrypt(isPremium, hasQuota bool) bool {
	return isPremium || hasQuota
}

// Guard gates access to the encrypted model artifact.
type Guard struct {
	store         *modelstore.Store
	encryptedPath string
	logger        *logger.Logger
}

// NewGuard constructs a [Guard] over the given store and artifact path.
func NewGuard(store *modelstore.Store, encryptedPath string, logger *logger.Logger) *Guard {
	return &Guard{
		store:         store,
		encryptedPath: encryptedPath,
		logger:        logger,
	}
}

// EncryptedPath returns the configured artifact location.
func (g *Guard) EncryptedPath() string {
	return g.encryptedPath
}

// DecryptIfEntitled returns the decrypted model bytes when the caller is
// entitled to them.
//
// Checks run cheapest-first: entitlement before file existence before
// decryption, so non-entitled callers never cause artifact I/O (and cannot
// probe for the file's existence through timing).
//
// Errors: [ErrDenied] when not entitled, [modelstore.ErrArtifactMissing]
// when the artifact is absent, [crypto.ErrIntegrity] when it is tampered
// or the key is wrong.
func (g *Guard) DecryptIfEntitled(isPremium, hasQuota bool) ([]byte, error) {
	if !CanDecrypt(isPremium, hasQuota) {
		g.logger.Warn().
			Bool("is_premium", isPremium).
			Bool("has_quota", hasQuota).
			Msg("model decryption refused")
		return nil, ErrDenied
	}

	data, err := g.store.DecryptToMemory(g.encryptedPath)
	if err != nil {
		return nil, fmt.Errorf("materialize model: %w", err)
	}

	return data, nil
}
