package crypto

import "errors"

// Sentinel errors returned by the cipher. Callers should use [errors.Is]
// to match against these values.
var (
	// ErrIntegrity is returned when decryption fails its authentication
	// check: the ciphertext was tampered with or the key is wrong. The two
	// causes are indistinguishable by design of the AEAD.
	ErrIntegrity = errors.New("ciphertext integrity check failed")

	// ErrInvalidKey is returned when key material cannot be used to build
	// the cipher.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrEmptySecret is returned when no secret was supplied to derive a
	// key from.
	ErrEmptySecret = errors.New("empty encryption secret")
)
