// Package crypto encrypts application secrets at rest with AES-256-GCM.
//
// The storage key is derived from CONFIG_ENCRYPTION_KEY with PBKDF2. Each
// ciphertext is bound to the appid it belongs to, so a value copied onto
// another app's row fails to decrypt.
//
//	enc, err := crypto.NewConfigEncryptor(os.Getenv("CONFIG_ENCRYPTION_KEY"))
//	stored, err := enc.EncryptFor("app-1", secret)
//	secret, err = enc.DecryptFor("app-1", stored)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"sigauth/internal/common/errors"
)

const (
	// ciphertextPrefix marks values written by EncryptFor.
	ciphertextPrefix = "enc:v1:"

	kdfSalt       = "sigauth-secret-store"
	kdfIterations = 10000
	keyLength     = 32
)

// ConfigEncryptor encrypts and decrypts stored secrets. It is safe for
// concurrent use.
type ConfigEncryptor struct {
	aead cipher.AEAD
}

// NewConfigEncryptor derives a 256-bit key from passphrase.
func NewConfigEncryptor(passphrase string) (*ConfigEncryptor, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), []byte(kdfSalt), kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &ConfigEncryptor{aead: aead}, nil
}

// EncryptFor seals secret for appid. Every call uses a fresh random nonce,
// so the same input never yields the same output twice.
func (e *ConfigEncryptor) EncryptFor(appid, secret string) (string, error) {
	if secret == "" {
		return "", errors.ValidationError("secret cannot be empty")
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(secret), []byte(appid))
	return ciphertextPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptFor opens a value produced by EncryptFor for the same appid.
func (e *ConfigEncryptor) DecryptFor(appid, stored string) (string, error) {
	if !IsEncrypted(stored) {
		return "", errors.ValidationError("value is not an encrypted secret")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, ciphertextPrefix))
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+e.aead.Overhead() {
		return "", errors.ValidationError("ciphertext too short")
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(appid))
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether stored carries the EncryptFor prefix.
func IsEncrypted(stored string) bool {
	return strings.HasPrefix(stored, ciphertextPrefix)
}
