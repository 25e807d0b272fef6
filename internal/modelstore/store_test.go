package modelstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dianalab/diana/internal/crypto"
	"github.com/dianalab/diana/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	c, err := crypto.NewCipher([]byte("model store test secret"))
	require.NoError(t, err)
	return NewStore(c, logger.Nop())
}

func TestEncryptDecryptFile_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "model.dmr")
	encrypted := filepath.Join(dir, "model.dmr.enc")
	payload := bytes.Repeat([]byte("weights"), 1024)
	require.NoError(t, os.WriteFile(source, payload, 0o600))

	require.NoError(t, s.EncryptFile(source, encrypted))

	ciphertext, err := os.ReadFile(encrypted)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(ciphertext, []byte("weights")), "ciphertext leaks plaintext")

	got, err := s.DecryptToMemory(encrypted)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecryptToMemory_MissingFile(t *testing.T) {
	s := newTestStore(t)

	_, err := s.DecryptToMemory(filepath.Join(t.TempDir(), "absent.enc"))
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.NotErrorIs(t, err, crypto.ErrIntegrity)
}

func TestDecryptToMemory_CorruptedFile(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "model.dmr")
	encrypted := filepath.Join(dir, "model.dmr.enc")
	require.NoError(t, os.WriteFile(source, []byte("model bytes"), 0o600))
	require.NoError(t, s.EncryptFile(source, encrypted))

	blob, err := os.ReadFile(encrypted)
	require.NoError(t, err)
	blob[len(blob)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(encrypted, blob, 0o600))

	_, err = s.DecryptToMemory(encrypted)
	assert.ErrorIs(t, err, crypto.ErrIntegrity)
	assert.NotErrorIs(t, err, ErrArtifactMissing)
}

func TestDecryptToMemory_WrongKey(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "model.dmr")
	encrypted := filepath.Join(dir, "model.dmr.enc")
	require.NoError(t, os.WriteFile(source, []byte("model bytes"), 0o600))

	c1, err := crypto.NewCipher([]byte("build pipeline key"))
	require.NoError(t, err)
	require.NoError(t, NewStore(c1, logger.Nop()).EncryptFile(source, encrypted))

	c2, err := crypto.NewCipher([]byte("a different key"))
	require.NoError(t, err)
	_, err = NewStore(c2, logger.Nop()).DecryptToMemory(encrypted)
	assert.ErrorIs(t, err, crypto.ErrIntegrity)
}

func TestDecryptToFile_AndSecureErase(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "model.dmr")
	encrypted := filepath.Join(dir, "model.dmr.enc")
	decrypted := filepath.Join(dir, "model.decrypted.dmr")
	payload := []byte("plaintext model weights")
	require.NoError(t, os.WriteFile(source, payload, 0o600))
	require.NoError(t, s.EncryptFile(source, encrypted))

	require.NoError(t, s.DecryptToFile(encrypted, decrypted))
	got, err := os.ReadFile(decrypted)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.SecureErase(decrypted))
	_, err = os.Stat(decrypted)
	assert.True(t, os.IsNotExist(err), "decrypted file should be gone after erase")
}

func TestSecureErase_MissingFileIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.SecureErase(filepath.Join(t.TempDir(), "never-existed")))
}

func TestVerifyIntegrity(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	source := filepath.Join(dir, "model.dmr")
	encrypted := filepath.Join(dir, "model.dmr.enc")
	require.NoError(t, os.WriteFile(source, []byte("verify me"), 0o600))
	require.NoError(t, s.EncryptFile(source, encrypted))

	assert.True(t, s.VerifyIntegrity(encrypted))

	blob, err := os.ReadFile(encrypted)
	require.NoError(t, err)
	blob[0] ^= 0x01
	require.NoError(t, os.WriteFile(encrypted, blob, 0o600))
	assert.False(t, s.VerifyIntegrity(encrypted))

	assert.False(t, s.VerifyIntegrity(filepath.Join(dir, "missing.enc")))
}

func TestEncryptFile_MissingSource(t *testing.T) {
	s := newTestStore(t)
	err := s.EncryptFile(filepath.Join(t.TempDir(), "absent"), filepath.Join(t.TempDir(), "out.enc"))
	assert.True(t, errors.Is(err, ErrArtifactMissing))
}
