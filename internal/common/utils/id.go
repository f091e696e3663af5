// Package utils provides small helpers shared by the signing service:
// random token generation and retrying of startup connections.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// NonceAlphabet is the character set used for request nonces.
const NonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultNonceLength is the length of nonces produced by the signer.
const DefaultNonceLength = 8

// GenerateNonce returns a random alphanumeric string of the given length
// read from crypto/rand.
func GenerateNonce(length int) (string, error) {
	return GenerateNonceFrom(rand.Reader, length)
}

// GenerateNonceFrom is GenerateNonce with an explicit entropy source.
//
// Bytes that would bias the distribution are rejected and redrawn, so every
// character of NonceAlphabet is equally likely.
func GenerateNonceFrom(r io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("nonce length must be positive, got %d", length)
	}

	const n = len(NonceAlphabet)
	// largest multiple of n that fits in a byte
	limit := 256 - 256%n

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, NonceAlphabet[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// GenerateRandomID generates a cryptographically secure random hex ID.
// length is the number of hex characters; odd lengths are rounded down.
func GenerateRandomID(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateRequestID generates a request ID in the form "req-{hex}-{unix}".
func GenerateRequestID() (string, error) {
	id, err := GenerateRandomID(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return fmt.Sprintf("req-%s-%d", id, time.Now().Unix()), nil
}
