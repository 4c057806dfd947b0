package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Encryptor is the capability the credential store consumes for keeping token
// material encrypted at rest. Key custody stays behind this interface.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Passthrough stores token material unencrypted. Only for local development
// when no token key is configured.
type Passthrough struct{}

func (Passthrough) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (Passthrough) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// AESBox is an AES-256-GCM Encryptor. Ciphertexts are base64(nonce||sealed).
type AESBox struct {
	aead cipher.AEAD
}

// NewAESBox builds an AESBox from a hex-encoded 32-byte key.
func NewAESBox(hexKey string) (*AESBox, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid token key: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("token key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESBox{aead: aead}, nil
}

func (b *AESBox) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *AESBox) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}
	plain, err := b.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
