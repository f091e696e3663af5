package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sigauth/internal/common/logging"
	"sigauth/internal/events"
	"sigauth/internal/signature"
)

// NonceMessage is returned when a signed request is seen a second time.
const NonceMessage = "nonce already used"

// NonceGuard records nonces so a signed request is accepted only once.
// redis.Client satisfies it.
type NonceGuard interface {
	ClaimNonce(ctx context.Context, appid, nonce string, ttl time.Duration) (bool, error)
}

// SignatureAuthOptions configures SignatureAuth.
type SignatureAuthOptions struct {
	Verifier *signature.Verifier
	Config   signature.VerifyConfig
	// Header is the request header holding the signature. Defaults to
	// Authorization.
	Header string
	// Nonces enables the replay guard when set.
	Nonces NonceGuard
	// Publisher receives an event for every rejected request, and for
	// accepted ones when PublishSuccess is set.
	Publisher      events.Publisher
	PublishSuccess bool
	Logger         logging.Logger
}

// ErrorResponse is the body written for a rejected request.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type appIDKey struct{}

// AppIDFromContext returns the appid SignatureAuth authenticated.
func AppIDFromContext(ctx context.Context) (string, bool) {
	appid, ok := ctx.Value(appIDKey{}).(string)
	return appid, ok && appid != ""
}

// SignatureAuth verifies the signature header of every request before
// passing it on. The request body is restored for the next handler.
func SignatureAuth(opts SignatureAuthOptions) func(http.Handler) http.Handler {
	if opts.Header == "" {
		opts.Header = "Authorization"
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	logger := opts.Logger.WithFields(logging.String("component", "signature_auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := signature.PreserveRequestBody(r)
			if err != nil {
				logger.WithContext(r.Context()).Warn("Failed to read request body", logging.Err(err))
				writeOutcome(w, http.StatusBadRequest, signature.CodeSignatureMismatch, "failed to read request body")
				return
			}

			req, err := signature.RequestFromHTTP(r, body)
			if err != nil {
				out := signature.Outcome{
					Code:    signature.CodeSignatureMismatch,
					Message: fmt.Sprintf("query is invalid: %v", err),
					Err:     err,
				}
				reject(w, r, opts, logger, out, http.StatusBadRequest)
				return
			}

			headerValue := r.Header.Get(opts.Header)
			out := opts.Verifier.VerifyHeader(r.Context(), signature.HeaderVerifyOptions{
				HeaderValue:  headerValue,
				Request:      req,
				VerifyConfig: opts.Config,
			})
			if !out.OK() {
				reject(w, r, opts, logger, out, out.HTTPStatus())
				return
			}

			if opts.Nonces != nil {
				if status, replayed := claimNonce(r.Context(), opts, logger, headerValue, out); replayed != nil {
					reject(w, r, opts, logger, *replayed, status)
					return
				}
			}

			if opts.PublishSuccess {
				publish(r, opts, logger, events.TypeVerificationSucceeded, out)
			}

			setAuthenticatedApp(r.Context(), out.AppID)
			ctx := context.WithValue(r.Context(), appIDKey{}, out.AppID)
			ctx = context.WithValue(ctx, logging.AppIDKey, out.AppID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// claimNonce returns a failed outcome and its status when the nonce was
// already used or could not be recorded.
func claimNonce(ctx context.Context, opts SignatureAuthOptions, logger logging.Logger, headerValue string, out signature.Outcome) (int, *signature.Outcome) {
	fields, err := signature.DecodeHeader(headerValue, opts.Config.Format(), opts.Config.VerifyHashName)
	if err != nil {
		// VerifyHeader already accepted this value
		return http.StatusBadRequest, &signature.Outcome{Code: signature.CodeSignatureMismatch, Message: err.Error(), AppID: out.AppID, Err: err}
	}

	ttl := time.Duration(opts.Config.TimestampValidTime) * time.Second
	if ttl <= 0 {
		ttl = time.Duration(signature.DefaultTimestampValidTime) * time.Second
	}

	claimed, err := opts.Nonces.ClaimNonce(ctx, fields.AppID, fields.Nonce, ttl)
	if err != nil {
		logger.WithContext(ctx).Error("Nonce guard unavailable", err, logging.String("appid", fields.AppID))
		return http.StatusServiceUnavailable, &signature.Outcome{
			Code:    signature.CodeTimestampInvalid,
			Message: "nonce check unavailable",
			AppID:   fields.AppID,
			Err:     err,
		}
	}
	if !claimed {
		return http.StatusForbidden, &signature.Outcome{
			Code:    signature.CodeTimestampInvalid,
			Message: NonceMessage,
			AppID:   fields.AppID,
		}
	}
	return 0, nil
}

func reject(w http.ResponseWriter, r *http.Request, opts SignatureAuthOptions, logger logging.Logger, out signature.Outcome, status int) {
	if out.AppID != "" {
		setAuthenticatedApp(r.Context(), out.AppID)
	}
	publish(r, opts, logger, events.TypeVerificationFailed, out)
	writeOutcome(w, status, out.Code, out.Message)
}

func publish(r *http.Request, opts SignatureAuthOptions, logger logging.Logger, eventType string, out signature.Outcome) {
	if opts.Publisher == nil {
		return
	}

	event := events.Event{
		Type:       eventType,
		AppID:      out.AppID,
		Code:       int(out.Code),
		Message:    out.Message,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		RequestID:  RequestIDFromContext(r.Context()),
		Time:       time.Now().UTC(),
	}
	if err := opts.Publisher.Publish(r.Context(), event); err != nil {
		logger.WithContext(r.Context()).Warn("Failed to publish verification event",
			logging.String("type", eventType),
			logging.Err(err),
		)
	}
}

func writeOutcome(w http.ResponseWriter, status int, code signature.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: int(code), Message: message})
}
