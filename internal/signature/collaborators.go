package signature

import (
	"context"
	"time"

	"sigauth/internal/common/utils"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// NonceSource produces a fresh nonce for every signed request.
type NonceSource interface {
	Nonce() (string, error)
}

// NonceFunc adapts a function to NonceSource.
type NonceFunc func() (string, error)

// Nonce implements NonceSource.
func (f NonceFunc) Nonce() (string, error) { return f() }

// RandomNonceSource returns a NonceSource of crypto/rand alphanumeric
// nonces of the given length.
func RandomNonceSource(length int) NonceSource {
	return NonceFunc(func() (string, error) {
		return utils.GenerateNonce(length)
	})
}

// SecretResolver looks up the secret key of an appid.
//
// An unknown appid is reported either as ("", nil) or as an error matching
// ErrSecretNotFound. Any other error is treated as a lookup failure.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, appid string) (string, error)
}

// ResolverFunc adapts a function to SecretResolver.
type ResolverFunc func(ctx context.Context, appid string) (string, error)

// ResolveSecret implements SecretResolver.
func (f ResolverFunc) ResolveSecret(ctx context.Context, appid string) (string, error) {
	return f(ctx, appid)
}
