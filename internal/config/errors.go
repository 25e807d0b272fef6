package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid. All of them are fatal at
// startup of the affected component and are never retried.
var (
	// ErrNoEncryptionSecret indicates that neither a passphrase nor a
	// pre-generated key was configured for the model cipher.
	ErrNoEncryptionSecret = errors.New("encryption secret is not configured")
	// ErrNoEncryptedModelPath indicates that the encrypted model artifact
	// path is empty.
	ErrNoEncryptedModelPath = errors.New("encrypted model path is not configured")
	// ErrNoQuotaFile indicates that the quota record path is empty.
	ErrNoQuotaFile = errors.New("quota file path is not configured")
	// ErrInvalidFreeLimit indicates a zero free-tier limit, which would
	// lock every non-premium user out on first use.
	ErrInvalidFreeLimit = errors.New("free-tier limit must be positive")
)
