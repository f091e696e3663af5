package secrets

import (
	"context"
	"errors"

	apperrors "sigauth/internal/common/errors"
	"sigauth/internal/crypto"
	"sigauth/internal/redis"
	"sigauth/internal/signature"
)

const redisSecretPrefix = "sigauth:secret:"

// RedisStore keeps secrets as plain keys in Redis. The client is shared
// with the nonce guard and the event publisher, so Close does not close it.
type RedisStore struct {
	client *redis.Client
	codec  codec
}

func NewRedisStore(client *redis.Client, encryptor *crypto.ConfigEncryptor) (*RedisStore, error) {
	if client == nil {
		return nil, apperrors.ConfigError("redis client is required for the redis secret store")
	}
	return &RedisStore{client: client, codec: codec{encryptor: encryptor}}, nil
}

func newRedisFromOptions(_ context.Context, opts Options) (Store, error) {
	return NewRedisStore(opts.Redis, opts.Encryptor)
}

func (s *RedisStore) ResolveSecret(ctx context.Context, appid string) (string, error) {
	stored, err := s.client.Get(ctx, redisSecretPrefix+appid)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return "", signature.ErrSecretNotFound
	}
	if err != nil {
		return "", apperrors.ConnectionError("failed to load secret", err)
	}
	return s.codec.open(appid, stored)
}

func (s *RedisStore) PutSecret(ctx context.Context, appid, secret string) error {
	if err := validatePut(appid, secret); err != nil {
		return err
	}
	stored, err := s.codec.seal(appid, secret)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisSecretPrefix+appid, stored, 0); err != nil {
		return apperrors.ConnectionError("failed to store secret", err)
	}
	return nil
}

func (s *RedisStore) DeleteSecret(ctx context.Context, appid string) error {
	removed, err := s.client.Delete(ctx, redisSecretPrefix+appid)
	if err != nil {
		return apperrors.ConnectionError("failed to delete secret", err)
	}
	if !removed {
		return notFound(appid)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, appid string) (bool, error) {
	exists, err := s.client.Exists(ctx, redisSecretPrefix+appid)
	if err != nil {
		return false, apperrors.ConnectionError("failed to check app", err)
	}
	return exists, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *RedisStore) Close() error { return nil }
