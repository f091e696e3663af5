package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigauth/internal/signature"
)

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run(nil, &stdout, &stderr))
	assert.Error(t, run([]string{"frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: sigctl")
}

func TestSignThenVerify(t *testing.T) {
	common := []string{"-secret", "s3cr3t", "-method", "post", "-url", "/v1/orders", "-query", "b=2&a=1", "-body", `{"amount":42}`}

	var signed bytes.Buffer
	require.NoError(t, run(append([]string{"sign", "-appid", "app1"}, common...), &signed, &bytes.Buffer{}))

	var result signature.SignedRequest
	require.NoError(t, json.Unmarshal(signed.Bytes(), &result))
	assert.Equal(t, "/v1/orders?b=2&a=1", result.URL)
	assert.True(t, strings.HasPrefix(result.HeaderValue, "HMAC-SHA256 app1:"))
	assert.Contains(t, result.RawSignatureString, "POST\n")

	var verified bytes.Buffer
	args := append([]string{"verify", "-header", result.HeaderValue}, common...)
	require.NoError(t, run(args, &verified, &bytes.Buffer{}))

	var outcome signature.Outcome
	require.NoError(t, json.Unmarshal(verified.Bytes(), &outcome))
	assert.Equal(t, signature.CodeSuccess, outcome.Code)
	assert.Equal(t, "app1", outcome.AppID)
}

func TestVerify_Mismatch(t *testing.T) {
	var header bytes.Buffer
	require.NoError(t, run([]string{"sign", "-appid", "app1", "-secret", "s3cr3t", "-url", "/a", "-header-only"}, &header, &bytes.Buffer{}))

	var out bytes.Buffer
	err := run([]string{"verify", "-secret", "other", "-url", "/a", "-header", strings.TrimSpace(header.String())}, &out, &bytes.Buffer{})
	assert.ErrorIs(t, err, errVerificationFailed)

	var outcome signature.Outcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &outcome))
	assert.Equal(t, signature.CodeSignatureMismatch, outcome.Code)
}

func TestSign_PairFormat(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"sign", "-appid", "app1", "-secret", "s3cr3t", "-url", "/a", "-pair", "-hash-name=false", "-header-only"}, &out, &bytes.Buffer{}))
	assert.True(t, strings.HasPrefix(out.String(), "appid=app1&timestamp="))
}

func TestSign_MissingAppID(t *testing.T) {
	assert.Error(t, run([]string{"sign", "-secret", "s3cr3t", "-url", "/a"}, &bytes.Buffer{}, &bytes.Buffer{}))
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret-that-is-long-enough-for-hs256")

	var out bytes.Buffer
	require.NoError(t, run([]string{"token", "-subject", "ops", "-ttl", "1h"}, &out, &bytes.Buffer{}))

	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &tok))
	assert.Equal(t, 2, strings.Count(tok.Token, "."))
}

func TestToken_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	assert.Error(t, run([]string{"token"}, &bytes.Buffer{}, &bytes.Buffer{}))
}
