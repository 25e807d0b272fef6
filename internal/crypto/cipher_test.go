package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestDeriveKey_PassphraseIsDeterministic(t *testing.T) {
	k1, err := DeriveKey([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	k2, err := DeriveKey([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}

	if k1 != k2 {
		t.Fatalf("expected derived keys to match for same passphrase")
	}

	raw, err := base64.URLEncoding.DecodeString(k1)
	if err != nil {
		t.Fatalf("derived key is not valid base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("raw key length = %d, want 32", len(raw))
	}
}

func TestDeriveKey_ValidKeyPassesThrough(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	derived, err := DeriveKey([]byte(key))
	if err != nil {
		t.Fatalf("DeriveKey error: %v", err)
	}
	if derived != key {
		t.Fatalf("expected pre-generated key to pass through unchanged")
	}
}

func TestDeriveKey_DifferentSecretsDiffer(t *testing.T) {
	k1, _ := DeriveKey([]byte("secret one"))
	k2, _ := DeriveKey([]byte("secret two"))
	if k1 == k2 {
		t.Fatalf("expected different keys for different secrets")
	}
}

func TestDeriveKey_EmptySecret(t *testing.T) {
	if _, err := DeriveKey(nil); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := NewCipher([]byte("round trip passphrase"))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}

	for _, plaintext := range [][]byte{
		{},
		[]byte("x"),
		[]byte("the quick brown fox"),
		bytes.Repeat([]byte{0x00, 0xFF}, 4096),
	} {
		blob, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt error: %v", err)
		}

		got, err := c.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt error: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(plaintext))
		}
	}
}

func TestDecrypt_TamperAnyByteFailsClosed(t *testing.T) {
	c, err := NewCipher([]byte("tamper detection passphrase"))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}

	blob, err := c.Encrypt([]byte("sensitive model weights"))
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}

	for i := range blob {
		corrupted := make([]byte, len(blob))
		copy(corrupted, blob)
		corrupted[i] ^= 0x01

		if _, err := c.Decrypt(corrupted); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("byte %d: expected ErrIntegrity, got %v", i, err)
		}
	}
}

func TestDecrypt_WrongKeyFailsClosed(t *testing.T) {
	c1, err := NewCipher([]byte("key one"))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}
	c2, err := NewCipher([]byte("key two"))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}

	blob, err := c1.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}

	if _, err := c2.Decrypt(blob); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for wrong key, got %v", err)
	}
}

func TestDecrypt_TooShortBlob(t *testing.T) {
	c, err := NewCipher([]byte("short blob passphrase"))
	if err != nil {
		t.Fatalf("NewCipher error: %v", err)
	}

	if _, err := c.Decrypt([]byte{0x01, 0x02}); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for short blob, got %v", err)
	}
}

func TestGenerateKey_Randomness(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	k2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected generated keys to differ")
	}
}
