package signature

import (
	"errors"
	"fmt"
)

// Parse failure kinds. Use errors.Is against a *ParseError.
var (
	ErrEmptyHeader       = errors.New("signature is empty")
	ErrAlgorithmMismatch = errors.New("hash name is invalid")
	ErrMalformedHeader   = errors.New("signature header is malformed")
)

// ErrSecretNotFound may be returned by a SecretResolver for an unknown appid.
var ErrSecretNotFound = errors.New("secret not found")

// ParseError describes why a header value could not be decoded.
type ParseError struct {
	Kind   error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func newParseError(kind error, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
