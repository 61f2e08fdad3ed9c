// Package crypto implements the AES-256-GCM crypto provider and the on-disk
// keystore it loads keys from.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/provider"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// NonceSize is the GCM nonce length in bytes (96 bits).
const NonceSize = 12

// AESGCM encrypts with AES-256-GCM, drawing a fresh random nonce per call.
type AESGCM struct {
	aead cipher.AEAD
}

var _ provider.CryptoProvider = (*AESGCM)(nil)

// NewAESGCM creates a provider from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, errs.Newf(errs.KindCrypto, "key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "initializing cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "initializing gcm", err)
	}
	return &AESGCM{aead: aead}, nil
}

// ProviderName identifies the provider.
func (a *AESGCM) ProviderName() string { return "aes-256-gcm" }

// Encrypt seals the plaintext under a fresh nonce.
func (a *AESGCM) Encrypt(plaintext []byte) (provider.EncryptedData, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return provider.EncryptedData{}, errs.Wrap(errs.KindCrypto, "generating nonce", err)
	}
	ciphertext := a.aead.Seal(nil, nonce, plaintext, nil)
	return provider.NewEncryptedData(ciphertext, nonce), nil
}

// Decrypt opens a sealed payload. Tampered ciphertexts fail authentication.
func (a *AESGCM) Decrypt(data provider.EncryptedData) ([]byte, error) {
	nonce := data.Nonce()
	if len(nonce) != NonceSize {
		return nil, errs.Newf(errs.KindCrypto, "nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	plaintext, err := a.aead.Open(nil, nonce, data.Ciphertext(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "decrypting payload", err)
	}
	return plaintext, nil
}

// GenerateKey draws a random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errs.Wrap(errs.KindCrypto, "generating key", err)
	}
	return key, nil
}
