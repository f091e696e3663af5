package utils

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNonce(t *testing.T) {
	nonce, err := GenerateNonce(DefaultNonceLength)
	require.NoError(t, err)
	assert.Len(t, nonce, DefaultNonceLength)
	for _, c := range nonce {
		assert.True(t, strings.ContainsRune(NonceAlphabet, c), "unexpected character %q", c)
	}

	other, err := GenerateNonce(DefaultNonceLength)
	require.NoError(t, err)
	assert.NotEqual(t, nonce, other)
}

func TestGenerateNonceFrom_Deterministic(t *testing.T) {
	// 0 -> 'A', 1 -> 'B', 62 -> 'A' (wraps), 255 rejected
	src := bytes.NewReader([]byte{0, 1, 255, 62, 0, 0, 0, 0})
	nonce, err := GenerateNonceFrom(src, 3)
	require.NoError(t, err)
	assert.Equal(t, "ABA", nonce)
}

func TestGenerateNonceFrom_Errors(t *testing.T) {
	_, err := GenerateNonceFrom(bytes.NewReader(nil), 8)
	assert.Error(t, err)

	_, err = GenerateNonce(0)
	assert.Error(t, err)
}

func TestGenerateRequestID(t *testing.T) {
	id, err := GenerateRequestID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "req-"))
	assert.Len(t, strings.Split(id, "-"), 3)
}

func TestRetryWithBackoff(t *testing.T) {
	config := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), config, func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), config, func() error {
			calls++
			return errors.New("down")
		})
		assert.ErrorContains(t, err, "max retries exceeded")
		assert.Equal(t, 3, calls)
	})

	t.Run("non retryable", func(t *testing.T) {
		permanent := errors.New("bad credentials")
		cfg := config
		cfg.RetryableErrors = func(err error) bool { return !errors.Is(err, permanent) }

		calls := 0
		err := RetryWithBackoff(context.Background(), cfg, func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := config
		cfg.InitialDelay = time.Hour

		err := RetryWithBackoff(ctx, cfg, func() error { return errors.New("down") })
		assert.ErrorContains(t, err, "retry cancelled")
	})
}
