package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of canonical keyed with secretKey.
func Sign(canonical, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether two signatures are identical. The comparison time
// does not depend on where the inputs first differ.
func Equal(candidate, expected string) bool {
	return hmac.Equal([]byte(candidate), []byte(expected))
}
