package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// KeyCipher encrypts private key material at rest using AES-256-GCM.
// The cipher key is derived once from the configured master secret; there is
// no global state, callers construct one at startup and pass it around.
type KeyCipher struct {
	key [32]byte
}

// NewKeyCipher derives a 32-byte AES-256 key from arbitrary secret material
// using SHA-256.
func NewKeyCipher(secret []byte) (*KeyCipher, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("cryptox: master secret must not be empty")
	}

	return &KeyCipher{key: sha256.Sum256(secret)}, nil
}

// Encrypt encrypts PEM-encoded private key material.
// Output format: [12-byte nonce][ciphertext][16-byte auth tag].
func (c *KeyCipher) Encrypt(pemData []byte) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext and auth tag to the nonce.
	return gcm.Seal(nonce, nonce, pemData, nil), nil
}

// Decrypt reverses Encrypt and verifies the authentication tag.
func (c *KeyCipher) Decrypt(encrypted []byte) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(encrypted) < nonceSize {
		return nil, fmt.Errorf("cryptox: ciphertext too short")
	}

	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}

	return plaintext, nil
}

func (c *KeyCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create GCM: %w", err)
	}

	return gcm, nil
}
