// Package crypto seals provider credentials so they can live in the chain file.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// keySize is the AES-256 key length in bytes.
const keySize = 32

// ErrKeyRequired is returned when no encryption key is configured.
var ErrKeyRequired = errors.New("encryption key is required")

// SecretBox encrypts and decrypts provider secrets with AES-256-GCM.
// Ciphertext format: base64(nonce || sealed).
type SecretBox struct {
	gcm cipher.AEAD
}

// NewSecretBox builds a SecretBox from a base64-encoded 32-byte key.
func NewSecretBox(base64Key string) (*SecretBox, error) {
	base64Key = strings.TrimSpace(base64Key)
	if base64Key == "" {
		return nil, ErrKeyRequired
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes for AES-256, got %d bytes", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	return &SecretBox{gcm: gcm}, nil
}

// GenerateKey returns a fresh base64-encoded key suitable for NewSecretBox.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals a provider secret. Empty input stays empty.
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := b.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a secret produced by Encrypt.
func (b *SecretBox) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := b.gcm.NonceSize()
	if len(raw) < nonceSize+b.gcm.Overhead() {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := b.gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
