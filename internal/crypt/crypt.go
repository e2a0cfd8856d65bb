// Package crypt encrypts secrets stored in import files and configuration.
//
// Encrypted values carry the "$1$!" marker followed by base64 of
// nonce||ciphertext sealed with AES-256-GCM. The key is derived from a
// passphrase with SHA-256.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Marker prefixes every encrypted value.
const Marker = "$1$!"

var (
	// ErrNoKey is returned when a cipher has no passphrase configured.
	ErrNoKey = errors.New("crypt: no key configured")

	// ErrMalformed is returned when a marked value cannot be decoded.
	ErrMalformed = errors.New("crypt: malformed value")
)

// IsEncrypted reports whether v carries the encryption marker.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, Marker)
}

// Cipher seals and opens marked values.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a cipher from passphrase. An empty passphrase yields a
// cipher whose operations fail with ErrNoKey.
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return &Cipher{}, nil
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns the marked ciphertext of plain.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if c == nil || c.aead == nil {
		return "", ErrNoKey
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypt: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return Marker + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a marked value. Values without the marker are returned
// unchanged.
func (c *Cipher) Decrypt(v string) (string, error) {
	if !IsEncrypted(v) {
		return v, nil
	}
	if c == nil || c.aead == nil {
		return "", ErrNoKey
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(v, Marker))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	n := c.aead.NonceSize()
	if len(raw) < n {
		return "", ErrMalformed
	}
	plain, err := c.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(plain), nil
}
