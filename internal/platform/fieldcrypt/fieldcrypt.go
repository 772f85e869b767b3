// Package fieldcrypt encrypts sensitive identifiers (Aadhaar numbers) before
// they are written to the database.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Encryptor provides AES-256-GCM field encryption. Ciphertexts are base64
// strings holding the nonce followed by the sealed data.
type Encryptor struct {
	aead cipher.AEAD
}

// New creates an Encryptor from a 32-byte key.
func New(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("fieldcrypt: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: create GCM: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// NewEphemeral creates an Encryptor with a random key. Values it encrypts
// cannot be read after a restart, so it is only used in development.
func NewEphemeral() (*Encryptor, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("fieldcrypt: generate key: %w", err)
	}
	return New(key)
}

func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: base64 decode: %w", err)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("fieldcrypt: ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Mask hides all but the last four characters, e.g. "XXXX-XXXX-9012".
func Mask(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	if len(s) <= 4 {
		return strings.Repeat("X", len(s))
	}
	masked := strings.Repeat("X", len(s)-4) + s[len(s)-4:]
	if len(masked) == 12 {
		return masked[:4] + "-" + masked[4:8] + "-" + masked[8:]
	}
	return masked
}
