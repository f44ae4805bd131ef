// Package secrets provides the encryption capability for persisted email
// credentials. Blobs are encrypted at rest and only decrypted in process
// memory for the duration of a send.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var (
	// ErrEncryptFailed indicates the blob could not be encrypted
	ErrEncryptFailed = errors.New("secret encryption failed")
	// ErrDecryptFailed indicates the blob could not be decrypted (wrong key or tampered data)
	ErrDecryptFailed = errors.New("secret decryption failed")
)

// Cipher encrypts and decrypts credential blobs. The provider factory takes
// this as an injected capability so the core stays testable without a real key.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCipher implements Cipher using AES-256-GCM with a random nonce per blob.
type AESCipher struct {
	key []byte // 32 bytes for AES-256
}

// NewAESCipher creates a cipher from the given key material. The key is
// zero-padded or truncated to 32 bytes.
func NewAESCipher(key []byte) *AESCipher {
	k := make([]byte, 32)
	copy(k, key)
	return &AESCipher{key: k}
}

// Encrypt seals the plaintext and returns a base64 blob of nonce||ciphertext.
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrEncryptFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptFailed
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *AESCipher) Decrypt(blob string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryptFailed
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrDecryptFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptFailed
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", ErrDecryptFailed
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
