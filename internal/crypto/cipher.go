package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// aeadCipher is the private implementation of [Cipher]. The key is derived
// once at construction with Argon2id and held only in memory.
type aeadCipher struct {
	key []byte
}

// NewCipher derives a 256-bit key from passphrase and salt using Argon2id
// with the OWASP-recommended parameters (1 iteration, 64 MiB, 4 threads) and
// returns a [Cipher] sealing with AES-256-GCM.
//
// The salt is not a secret; it only ensures that equal passphrases on
// different devices produce different keys. Callers persist it next to the
// data it protects.
func NewCipher(passphrase string, salt []byte) Cipher {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	return &aeadCipher{key: key}
}

// GenerateSalt reads 16 random bytes from the OS CSPRNG for use as a key
// derivation salt. Returns an error if the random read fails.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Encrypt implements [Cipher]. It seals plaintext with AES-256-GCM. A random
// 12-byte nonce is prepended to the ciphertext so Decrypt can locate it:
// blob = nonce ‖ ciphertext, base64 standard encoding.
func (c *aeadCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	blob := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt implements [Cipher]. It base64-decodes the blob, splits out the
// nonce, and opens the ciphertext. An authentication-tag mismatch almost
// always means the blob was sealed under a different passphrase.
func (c *aeadCipher) Decrypt(ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := blob[:nonceSize], blob[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt data: %w", err)
	}

	return string(plaintext), nil
}
