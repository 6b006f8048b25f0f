// Package crypto provides the encrypt-at-rest primitive used for stored
// grades, GPA figures and portal credentials.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyLen is the required key size in bytes.
const KeyLen = chacha20poly1305.KeySize

// ErrInvalidKey is returned when the configured key has the wrong size.
var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// Vault seals and opens short text values with XChaCha20-Poly1305. One nonce
// covers every field encrypted in the same row.
type Vault struct {
	key []byte
}

// NewVault validates the key and returns a ready vault.
func NewVault(key []byte) (*Vault, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKey
	}

	return &Vault{key: key}, nil
}

// NewNonce returns a fresh random nonce, base64 encoded, for sealing the
// fields of one row.
func (v *Vault) NewNonce() (string, error) {
	rawNonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(rawNonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(rawNonce), nil
}

// Encrypt seals plaintext under a fresh random nonce. Both return values are
// base64 encoded. Empty input is a no-op and yields an empty ciphertext and
// nonce.
func (v *Vault) Encrypt(plaintext string) (ciphertext, nonce string, err error) {
	if plaintext == "" {
		return "", "", nil
	}

	nonce, err = v.NewNonce()
	if err != nil {
		return "", "", err
	}

	ciphertext, err = v.EncryptWithNonce(plaintext, nonce)
	if err != nil {
		return "", "", err
	}

	return ciphertext, nonce, nil
}

// EncryptWithNonce seals plaintext under an existing base64 nonce so several
// fields of one row can share it.
func (v *Vault) EncryptWithNonce(plaintext, nonce string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	if len(rawNonce) != chacha20poly1305.NonceSizeX {
		return "", errors.New("nonce has wrong size")
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	sealed := aead.Seal(nil, rawNonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed value. An empty nonce marks a legacy row stored in
// clear, so the input is returned unchanged. Empty input is a no-op.
func (v *Vault) Decrypt(ciphertext, nonce string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if nonce == "" {
		return ciphertext, nil
	}

	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	if len(rawNonce) != chacha20poly1305.NonceSizeX {
		return "", errors.New("nonce has wrong size")
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	opened, err := aead.Open(nil, rawNonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}

	return string(opened), nil
}
