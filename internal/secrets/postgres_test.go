package secrets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sigauth/internal/common/errors"
)

// fakePgx answers the handful of statements PostgresStore issues.
type fakePgx struct {
	mu      sync.Mutex
	rows    map[string]string
	failing error
	closed  bool
}

func newFakePgx() *fakePgx {
	return &fakePgx{rows: make(map[string]string)}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		}
	}
	return nil
}

func (f *fakePgx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return pgconn.CommandTag{}, f.failing
	}

	stmt := strings.TrimSpace(sql)
	switch {
	case strings.HasPrefix(stmt, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(stmt, "INSERT"):
		f.rows[args[0].(string)] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(stmt, "DELETE"):
		appid := args[0].(string)
		if _, ok := f.rows[appid]; !ok {
			return pgconn.NewCommandTag("DELETE 0"), nil
		}
		delete(f.rows, appid)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected statement: " + stmt)
}

func (f *fakePgx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return fakeRow{err: f.failing}
	}

	appid := args[0].(string)
	secret, ok := f.rows[appid]
	if strings.Contains(sql, "EXISTS") {
		return fakeRow{values: []any{ok}}
	}
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: []any{secret}}
}

func (f *fakePgx) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failing
}

func (f *fakePgx) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestPostgresStore_EncryptsAtRest(t *testing.T) {
	conn := newFakePgx()
	store, err := newPostgresStore(context.Background(), conn, newTestEncryptor(t))
	require.NoError(t, err)

	require.NoError(t, store.PutSecret(context.Background(), "app-1", "plain-secret"))
	assert.NotContains(t, conn.rows["app-1"], "plain-secret")

	secret, err := store.ResolveSecret(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "plain-secret", secret)
}

func TestPostgresStore_Failures(t *testing.T) {
	conn := newFakePgx()
	store, err := newPostgresStore(context.Background(), conn, nil)
	require.NoError(t, err)

	conn.failing = errors.New("connection reset")

	_, err = store.ResolveSecret(context.Background(), "app-1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConnection))
	assert.True(t, apperrors.IsType(store.PutSecret(context.Background(), "app-1", "s"), apperrors.ErrTypeConnection))
	assert.Error(t, store.Health(context.Background()))

	require.NoError(t, store.Close())
	assert.True(t, conn.closed)
}

func TestPostgresStore_MigrationFailure(t *testing.T) {
	conn := newFakePgx()
	conn.failing = errors.New("permission denied")

	_, err := newPostgresStore(context.Background(), conn, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInternal))
}
