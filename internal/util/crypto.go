package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "enc:v1:"

var ErrInvalidCiphertext = errors.New("invalid token ciphertext")

// TokenCipher encrypts OAuth tokens before they are persisted. A cipher built
// from an empty key passes values through unchanged.
type TokenCipher struct {
	key []byte
}

// NewTokenCipher accepts a 32 byte key, either raw or hex encoded.
func NewTokenCipher(key string) (*TokenCipher, error) {
	if key == "" {
		return &TokenCipher{}, nil
	}
	raw := []byte(key)
	if len(key) == 2*chacha20poly1305.KeySize {
		if decoded, err := hex.DecodeString(key); err == nil {
			raw = decoded
		}
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}
	return &TokenCipher{key: raw}, nil
}

func (c *TokenCipher) Enabled() bool {
	return c != nil && len(c.key) > 0
}

func (c *TokenCipher) Seal(plain string) (string, error) {
	if !c.Enabled() || plain == "" {
		return plain, nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *TokenCipher) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !c.Enabled() {
		return "", ErrInvalidCiphertext
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
