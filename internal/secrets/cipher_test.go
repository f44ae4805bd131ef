package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := NewAESCipher([]byte("test-key"))

	plaintext := `{"accessToken":"abc","refreshToken":"def"}`
	blob, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if blob == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := c.Decrypt(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != plaintext {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestEncrypt_NonceIsRandom(t *testing.T) {
	c := NewAESCipher([]byte("test-key"))

	a, _ := c.Encrypt("same input")
	b, _ := c.Encrypt("same input")
	if a == b {
		t.Fatal("expected distinct ciphertexts for the same plaintext")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	blob, err := NewAESCipher([]byte("key-one")).Encrypt("secret material")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	_, err = NewAESCipher([]byte("key-two")).Decrypt(blob)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	c := NewAESCipher([]byte("test-key"))
	blob, err := c.Encrypt("secret material")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := strings.Replace(blob, blob[:1], flip(blob[:1]), 1)
	if _, err := c.Decrypt(tampered); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for tampered blob, got %v", err)
	}
}

func TestDecrypt_NotBase64(t *testing.T) {
	c := NewAESCipher([]byte("test-key"))
	if _, err := c.Decrypt("%%not-base64%%"); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func flip(s string) string {
	if s == "A" {
		return "B"
	}
	return "A"
}
