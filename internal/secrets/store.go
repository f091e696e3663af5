// Package secrets stores the shared secret of every appid and resolves it
// during signature verification.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"sigauth/internal/common/errors"
	"sigauth/internal/crypto"
	"sigauth/internal/signature"
)

// Store is a signature.SecretResolver that can also be administered.
//
// ResolveSecret returns signature.ErrSecretNotFound for an unknown appid.
// DeleteSecret returns a not_found AppError for an unknown appid.
type Store interface {
	signature.SecretResolver
	PutSecret(ctx context.Context, appid, secret string) error
	DeleteSecret(ctx context.Context, appid string) error
	Exists(ctx context.Context, appid string) (bool, error)
	Health(ctx context.Context) error
	Close() error
}

// codec applies optional at-rest encryption to stored values.
type codec struct {
	encryptor *crypto.ConfigEncryptor
}

func (c codec) seal(appid, secret string) (string, error) {
	if c.encryptor == nil {
		return secret, nil
	}
	return c.encryptor.EncryptFor(appid, secret)
}

func (c codec) open(appid, stored string) (string, error) {
	if !crypto.IsEncrypted(stored) {
		return stored, nil
	}
	if c.encryptor == nil {
		return "", errors.ConfigError(fmt.Sprintf("secret for %s is encrypted but CONFIG_ENCRYPTION_KEY is not set", appid))
	}
	return c.encryptor.DecryptFor(appid, stored)
}

// ValidateAppID checks an appid before it is stored. Header delimiters are
// rejected because they would make the header ambiguous.
func ValidateAppID(appid string) error {
	if appid == "" {
		return errors.ValidationError("appid is required")
	}
	if len(appid) > 128 {
		return errors.ValidationError("appid must be at most 128 characters")
	}
	if strings.ContainsAny(appid, ":&= \t\r\n") {
		return errors.ValidationError("appid must not contain ':', '&', '=' or whitespace")
	}
	return nil
}

func validatePut(appid, secret string) error {
	if err := ValidateAppID(appid); err != nil {
		return err
	}
	if secret == "" {
		return errors.ValidationError("secret key is required")
	}
	return nil
}

func notFound(appid string) error {
	return errors.NotFoundError("app " + appid)
}
