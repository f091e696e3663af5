package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigauth/internal/common/logging"
	"sigauth/internal/events"
	"sigauth/internal/ratelimit"
	"sigauth/internal/redis"
	"sigauth/internal/signature"
)

const (
	testAppID  = "app-1"
	testSecret = "s3cr3t"
	t0         = int64(1700000000)
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type failingGuard struct{}

func (failingGuard) ClaimNonce(context.Context, string, string, time.Duration) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func clockAt(unix int64) signature.Clock {
	return signature.ClockFunc(func() time.Time { return time.Unix(unix, 0) })
}

func newVerifier(now int64) *signature.Verifier {
	resolver := signature.ResolverFunc(func(_ context.Context, appid string) (string, error) {
		if appid == testAppID {
			return testSecret, nil
		}
		return "", signature.ErrSecretNotFound
	})
	return signature.NewVerifier(resolver, clockAt(now), logging.NewNopLogger())
}

func signHeader(t *testing.T, nonce string, req signature.Request) string {
	t.Helper()
	signer := signature.NewSigner(clockAt(t0), signature.NonceFunc(func() (string, error) { return nonce, nil }), logging.NewNopLogger())
	opts := signature.DefaultGenerateOptions()
	opts.AppID = testAppID
	opts.SecretKey = testSecret
	opts.Request = req
	signed, err := signer.Generate(opts)
	require.NoError(t, err)
	return signed.HeaderValue
}

type echo struct {
	AppID string `json:"appid"`
	Body  string `json:"body"`
}

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appid, _ := AppIDFromContext(r.Context())
		body, _ := io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(echo{AppID: appid, Body: string(body)})
	})
}

func newSignedRequest(t *testing.T, nonce string) *http.Request {
	t.Helper()
	header := signHeader(t, nonce, signature.Request{
		URL:    "/v1/orders",
		Method: http.MethodPost,
		Body:   `{"a":1}`,
		Query:  signature.Query{}.Add("b", "2").Add("a", "1"),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/orders?b=2&a=1", strings.NewReader(`{"a":1}`))
	req.Header.Set("Authorization", header)
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestSignatureAuth_Accepts(t *testing.T) {
	pub := &capturePublisher{}
	handler := SignatureAuth(SignatureAuthOptions{
		Verifier:       newVerifier(t0 + 10),
		Config:         signature.DefaultVerifyConfig(),
		Publisher:      pub,
		PublishSuccess: true,
		Logger:         logging.NewNopLogger(),
	})(echoHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newSignedRequest(t, "nonce001"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got echo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, testAppID, got.AppID)
	assert.Equal(t, `{"a":1}`, got.Body)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeVerificationSucceeded, published[0].Type)
	assert.Equal(t, 0, published[0].Code)
}

func TestSignatureAuth_EscapedPath(t *testing.T) {
	handler := SignatureAuth(SignatureAuthOptions{
		Verifier: newVerifier(t0 + 10),
		Config:   signature.DefaultVerifyConfig(),
		Logger:   logging.NewNopLogger(),
	})(echoHandler())

	for i, path := range []string{"/v1/a%2Fb", "/v1/a%20b", "/v1/caf%C3%A9"} {
		t.Run(path, func(t *testing.T) {
			header := signHeader(t, fmt.Sprintf("escaped%d", i), signature.Request{URL: path, Method: http.MethodGet})
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("Authorization", header)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		})
	}

	// the decoded form is a different path
	header := signHeader(t, "decoded1", signature.Request{URL: "/v1/a/b", Method: http.MethodGet})
	req := httptest.NewRequest(http.MethodGet, "/v1/a%2Fb", nil)
	req.Header.Set("Authorization", header)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, int(signature.CodeSignatureMismatch), decodeError(t, rr).Code)
}

func TestSignatureAuth_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		prepare    func(*http.Request)
		now        int64
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{
			name:       "missing header",
			prepare:    func(r *http.Request) { r.Header.Del("Authorization") },
			now:        t0,
			wantStatus: http.StatusBadRequest,
			wantCode:   1,
			wantMsg:    "signature is empty",
		},
		{
			name:       "tampered body",
			prepare:    func(r *http.Request) { r.Body = io.NopCloser(strings.NewReader(`{"a":2}`)) },
			now:        t0,
			wantStatus: http.StatusUnauthorized,
			wantCode:   1,
			wantMsg:    "signature is invalid",
		},
		{
			name:       "reordered query",
			prepare:    func(r *http.Request) { r.URL.RawQuery = "a=1&b=2" },
			now:        t0,
			wantStatus: http.StatusUnauthorized,
			wantCode:   1,
		},
		{
			name:       "stale",
			prepare:    func(*http.Request) {},
			now:        t0 + 301,
			wantStatus: http.StatusForbidden,
			wantCode:   2,
			wantMsg:    fmt.Sprintf("timestamp is invalid: %d - %d", t0, t0+301),
		},
		{
			name: "wrong algorithm",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", strings.Replace(r.Header.Get("Authorization"), "HMAC-SHA256", "HMAC-SHA1", 1))
			},
			now:        t0,
			wantStatus: http.StatusUnauthorized,
			wantCode:   3,
			wantMsg:    "hash name is invalid: HMAC-SHA1 - HMAC-SHA256",
		},
		{
			name: "unknown appid",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", strings.Replace(r.Header.Get("Authorization"), testAppID, "app-2", 1))
			},
			now:        t0,
			wantStatus: http.StatusUnauthorized,
			wantCode:   4,
			wantMsg:    "appid is invalid: app-2",
		},
		{
			name:       "bad query encoding",
			prepare:    func(r *http.Request) { r.URL.RawQuery = "a=%zz" },
			now:        t0,
			wantStatus: http.StatusBadRequest,
			wantCode:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &capturePublisher{}
			called := false
			handler := SignatureAuth(SignatureAuthOptions{
				Verifier:  newVerifier(tt.now),
				Config:    signature.DefaultVerifyConfig(),
				Publisher: pub,
				Logger:    logging.NewNopLogger(),
			})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			req := newSignedRequest(t, "nonce001")
			tt.prepare(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.False(t, called)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			resp := decodeError(t, rr)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}

			published := pub.all()
			require.Len(t, published, 1)
			assert.Equal(t, events.TypeVerificationFailed, published[0].Type)
			assert.Equal(t, tt.wantCode, published[0].Code)
			assert.Equal(t, "/v1/orders", published[0].Path)
		})
	}
}

func TestSignatureAuth_CustomHeaderAndPairFormat(t *testing.T) {
	cfg := signature.DefaultVerifyConfig()
	cfg.PairValue = true
	cfg.WithHashName = false
	cfg.VerifyHashName = false

	signer := signature.NewSigner(clockAt(t0), nil, logging.NewNopLogger())
	opts := signature.DefaultGenerateOptions()
	opts.AppID = testAppID
	opts.SecretKey = testSecret
	opts.URL = "/v1/ping"
	opts.WithHashName = false
	opts.PairValue = true
	signed, err := signer.Generate(opts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed.HeaderValue, "appid="))

	handler := SignatureAuth(SignatureAuthOptions{
		Verifier: newVerifier(t0),
		Config:   cfg,
		Header:   "X-Signature",
		Logger:   logging.NewNopLogger(),
	})(echoHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("X-Signature", signed.HeaderValue)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestSignatureAuth_NonceGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	pub := &capturePublisher{}
	handler := SignatureAuth(SignatureAuthOptions{
		Verifier:  newVerifier(t0),
		Config:    signature.DefaultVerifyConfig(),
		Nonces:    client,
		Publisher: pub,
		Logger:    logging.NewNopLogger(),
	})(echoHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newSignedRequest(t, "once0001"))
	require.Equal(t, http.StatusOK, first.Code)

	key := "sigauth:nonce:" + testAppID + ":once0001"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 300*time.Second, mr.TTL(key))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, newSignedRequest(t, "once0001"))
	assert.Equal(t, http.StatusForbidden, replay.Code)
	resp := decodeError(t, replay)
	assert.Equal(t, 2, resp.Code)
	assert.Equal(t, NonceMessage, resp.Message)

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, newSignedRequest(t, "once0002"))
	assert.Equal(t, http.StatusOK, other.Code)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, NonceMessage, published[0].Message)
}

func TestSignatureAuth_NonceGuardUnavailable(t *testing.T) {
	handler := SignatureAuth(SignatureAuthOptions{
		Verifier: newVerifier(t0),
		Config:   signature.DefaultVerifyConfig(),
		Nonces:   failingGuard{},
		Logger:   logging.NewNopLogger(),
	})(echoHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newSignedRequest(t, "nonce001"))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, 2, decodeError(t, rr).Code)
}

func TestSignatureAuth_PublishErrorIsNotFatal(t *testing.T) {
	pub := &capturePublisher{err: fmt.Errorf("broker down")}
	handler := SignatureAuth(SignatureAuthOptions{
		Verifier:  newVerifier(t0),
		Config:    signature.DefaultVerifyConfig(),
		Publisher: pub,
		Logger:    logging.NewNopLogger(),
	})(echoHandler())

	req := newSignedRequest(t, "nonce001")
	req.Header.Del("Authorization")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, pub.all(), 1)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.True(t, strings.HasPrefix(seen, "req-"), seen)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "upstream-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "upstream-42", seen)
		assert.Equal(t, "upstream-42", rr.Header().Get(RequestIDHeader))
	})

	t.Run("replaced when malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "has space")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.NotEqual(t, "has space", seen)
		assert.True(t, strings.HasPrefix(seen, "req-"))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	original := logging.GetGlobalLogger()
	defer logging.SetGlobalLogger(original)

	var buf bytes.Buffer
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: &buf, JSON: true})
	require.NoError(t, err)
	logging.SetGlobalLogger(logger)

	handler := RequestID(LoggingMiddleware(SignatureAuth(SignatureAuthOptions{
		Verifier: newVerifier(t0),
		Config:   signature.DefaultVerifyConfig(),
		Logger:   logging.NewNopLogger(),
	})(echoHandler())))

	req := newSignedRequest(t, "nonce001")
	req.Header.Set("User-Agent", "sigctl/test")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	line := buf.String()
	assert.Contains(t, line, "HTTP request completed")
	assert.Contains(t, line, `"status":200`)
	assert.Contains(t, line, `"appid":"app-1"`)
	assert.Contains(t, line, `"query":"b=2&a=1"`)
	assert.Contains(t, line, `"user_agent":"sigctl/test"`)
	assert.Contains(t, line, rr.Header().Get(RequestIDHeader))

	buf.Reset()
	rejected := newSignedRequest(t, "nonce002")
	rejected.Header.Del("Authorization")
	handler.ServeHTTP(httptest.NewRecorder(), rejected)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"status":400`)
}

func TestRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{Enabled: true, RequestsPerSecond: 0.5, BurstSize: 2})
	require.NoError(t, err)

	calls := 0
	handler := RateLimit(limiter, logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001").Code)

	rr := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), RateLimitMessage)

	// a different client is unaffected
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code)
	assert.Equal(t, 3, calls)
}

func TestRateLimit_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	for _, limiter := range []*ratelimit.Limiter{nil, mustLimiter(t, ratelimit.Config{})} {
		handler := RateLimit(limiter, nil)(next)
		for i := 0; i < 10; i++ {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
			assert.Equal(t, http.StatusOK, rr.Code)
		}
	}
}

func mustLimiter(t *testing.T, cfg ratelimit.Config) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.NewLimiter(cfg)
	require.NoError(t, err)
	return l
}
