package secrets

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "sigauth/internal/common/errors"
	"sigauth/internal/crypto"
	"sigauth/internal/signature"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS app_secrets (
	appid TEXT PRIMARY KEY,
	secret TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// pgxConn is the part of *pgxpool.Pool the store uses.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps secrets in PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	conn  pgxConn
	codec codec
}

// NewPostgresStore connects to dsn and creates the table when missing.
func NewPostgresStore(ctx context.Context, dsn string, encryptor *crypto.ConfigEncryptor) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperrors.ConnectionError("failed to create PostgreSQL pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.ConnectionError("failed to connect to PostgreSQL database", err)
	}

	store, err := newPostgresStore(ctx, pool, encryptor)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func newPostgresStore(ctx context.Context, conn pgxConn, encryptor *crypto.ConfigEncryptor) (*PostgresStore, error) {
	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		return nil, apperrors.InternalError("failed to migrate database", err)
	}
	return &PostgresStore{conn: conn, codec: codec{encryptor: encryptor}}, nil
}

func newPostgresFromOptions(ctx context.Context, opts Options) (Store, error) {
	return NewPostgresStore(ctx, opts.Config.PostgresDSN(), opts.Encryptor)
}

func (s *PostgresStore) ResolveSecret(ctx context.Context, appid string) (string, error) {
	var stored string
	err := s.conn.QueryRow(ctx, `SELECT secret FROM app_secrets WHERE appid = $1`, appid).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", signature.ErrSecretNotFound
	}
	if err != nil {
		return "", apperrors.ConnectionError("failed to load secret", err)
	}
	return s.codec.open(appid, stored)
}

func (s *PostgresStore) PutSecret(ctx context.Context, appid, secret string) error {
	if err := validatePut(appid, secret); err != nil {
		return err
	}
	stored, err := s.codec.seal(appid, secret)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO app_secrets (appid, secret) VALUES ($1, $2)
		ON CONFLICT (appid) DO UPDATE SET secret = EXCLUDED.secret, updated_at = NOW()`,
		appid, stored)
	if err != nil {
		return apperrors.ConnectionError("failed to store secret", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSecret(ctx context.Context, appid string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM app_secrets WHERE appid = $1`, appid)
	if err != nil {
		return apperrors.ConnectionError("failed to delete secret", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(appid)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, appid string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM app_secrets WHERE appid = $1)`, appid).Scan(&exists)
	if err != nil {
		return false, apperrors.ConnectionError("failed to check app", err)
	}
	return exists, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.conn.Close()
	return nil
}
