package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	apperrors "sigauth/internal/common/errors"
	"sigauth/internal/crypto"
	"sigauth/internal/signature"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS app_secrets (
	appid TEXT PRIMARY KEY,
	secret TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps secrets in a SQLite database file.
type SQLiteStore struct {
	db    *sql.DB
	codec codec
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string, encryptor *crypto.ConfigEncryptor) (*SQLiteStore, error) {
	if path == "" {
		return nil, apperrors.ConfigError("sqlite database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.ConnectionError("failed to open database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.ConnectionError("failed to ping database", err)
	}

	store := &SQLiteStore{db: db, codec: codec{encryptor: encryptor}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func newSQLiteFromOptions(_ context.Context, opts Options) (Store, error) {
	return NewSQLiteStore(opts.Config.DatabasePath, opts.Encryptor)
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteSchema)
	return err
}

func (s *SQLiteStore) ResolveSecret(ctx context.Context, appid string) (string, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT secret FROM app_secrets WHERE appid = ?`, appid).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", signature.ErrSecretNotFound
	}
	if err != nil {
		return "", apperrors.ConnectionError("failed to load secret", err)
	}
	return s.codec.open(appid, stored)
}

func (s *SQLiteStore) PutSecret(ctx context.Context, appid, secret string) error {
	if err := validatePut(appid, secret); err != nil {
		return err
	}
	stored, err := s.codec.seal(appid, secret)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_secrets (appid, secret) VALUES (?, ?)
		ON CONFLICT(appid) DO UPDATE SET secret = excluded.secret, updated_at = CURRENT_TIMESTAMP`,
		appid, stored)
	if err != nil {
		return apperrors.ConnectionError("failed to store secret", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSecret(ctx context.Context, appid string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM app_secrets WHERE appid = ?`, appid)
	if err != nil {
		return apperrors.ConnectionError("failed to delete secret", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return notFound(appid)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, appid string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM app_secrets WHERE appid = ?`, appid).Scan(&count)
	if err != nil {
		return false, apperrors.ConnectionError("failed to check app", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
