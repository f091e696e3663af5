package signature

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"sigauth/internal/common/logging"
)

// Code classifies a verification outcome.
type Code int

const (
	CodeSuccess Code = iota
	CodeSignatureMismatch
	CodeTimestampInvalid
	CodeAlgorithmMismatch
	CodeUnknownAppID
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeSignatureMismatch:
		return "signature_mismatch"
	case CodeTimestampInvalid:
		return "timestamp_invalid"
	case CodeAlgorithmMismatch:
		return "algorithm_mismatch"
	case CodeUnknownAppID:
		return "unknown_appid"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Outcome is the result of a verification. Failures never panic or return
// an error; they are described here.
type Outcome struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	AppID     string `json:"appid,omitempty"`
	Signature string `json:"signature,omitempty"`
	// Err is the parse or resolver error behind a failure, if any.
	Err error `json:"-"`
}

// OK reports whether the request was authenticated.
func (o Outcome) OK() bool {
	return o.Code == CodeSuccess
}

// HTTPStatus suggests a response status for the outcome.
func (o Outcome) HTTPStatus() int {
	switch {
	case o.Code == CodeSuccess:
		return http.StatusOK
	case errors.Is(o.Err, ErrEmptyHeader), errors.Is(o.Err, ErrMalformedHeader):
		return http.StatusBadRequest
	case o.Code == CodeTimestampInvalid:
		return http.StatusForbidden
	case o.Code == CodeUnknownAppID && o.Err != nil:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// VerifyParams are the inputs of a direct verification, where the caller
// already holds the secret and the parsed header fields.
type VerifyParams struct {
	AppID     string
	SecretKey string
	Request
	Timestamp          int64
	Nonce              string
	Signature          string
	VerifyTimestamp    bool
	TimestampValidTime int64
	EndsWithSecretKey  bool
}

// DefaultVerifyParams enables the timestamp check with a 300 second window.
func DefaultVerifyParams() VerifyParams {
	return VerifyParams{
		Request:            Request{Method: DefaultMethod},
		VerifyTimestamp:    true,
		TimestampValidTime: DefaultTimestampValidTime,
	}
}

// HeaderVerifyOptions are the inputs of a header verification.
type HeaderVerifyOptions struct {
	HeaderValue string
	Request
	VerifyConfig
}

// Verifier checks signature headers against secrets from a SecretResolver.
// It is safe for concurrent use.
type Verifier struct {
	resolver SecretResolver
	clock    Clock
	logger   logging.Logger
}

// NewVerifier creates a Verifier. A nil clock means the system clock and a
// nil logger means the global logger.
func NewVerifier(resolver SecretResolver, clock Clock, logger logging.Logger) *Verifier {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Verifier{resolver: resolver, clock: clock, logger: logger}
}

// VerifySignature checks the timestamp, then recomputes and compares the
// signature.
func (v *Verifier) VerifySignature(p VerifyParams) Outcome {
	out := v.verifySignature(p)
	if !out.OK() {
		v.logFailure(context.Background(), "compare", out)
	}
	return out
}

func (v *Verifier) verifySignature(p VerifyParams) Outcome {
	if p.VerifyTimestamp {
		now := v.clock.Now().Unix()
		if !IsFresh(p.Timestamp, now, p.TimestampValidTime) {
			return Outcome{
				Code:    CodeTimestampInvalid,
				Message: fmt.Sprintf("timestamp is invalid: %d - %d", p.Timestamp, now),
				AppID:   p.AppID,
			}
		}
	}

	req := SignatureRequest{
		AppID:             p.AppID,
		SecretKey:         p.SecretKey,
		Request:           p.Request,
		Timestamp:         p.Timestamp,
		Nonce:             p.Nonce,
		EndsWithSecretKey: p.EndsWithSecretKey,
	}
	result, err := GenerateSignature(req)
	if err != nil {
		return Outcome{
			Code:    CodeSignatureMismatch,
			Message: "signature is invalid: " + err.Error(),
			AppID:   p.AppID,
			Err:     err,
		}
	}

	if !Equal(p.Signature, result.Signature) {
		return Outcome{
			Code:    CodeSignatureMismatch,
			Message: "signature is invalid",
			AppID:   p.AppID,
		}
	}

	return Outcome{
		Code:      CodeSuccess,
		Message:   "success",
		AppID:     p.AppID,
		Signature: result.Signature,
	}
}

// VerifyHeader decodes the header value, resolves the appid's secret once
// and verifies the signature against the described request.
func (v *Verifier) VerifyHeader(ctx context.Context, opts HeaderVerifyOptions) Outcome {
	fields, err := DecodeHeader(opts.HeaderValue, opts.Format(), opts.VerifyHashName)
	if err != nil {
		out := Outcome{Code: CodeSignatureMismatch, Message: err.Error(), Err: err}
		if errors.Is(err, ErrAlgorithmMismatch) {
			out.Code = CodeAlgorithmMismatch
		}
		v.logFailure(ctx, "decode", out)
		return out
	}

	if v.resolver == nil {
		out := Outcome{
			Code:    CodeUnknownAppID,
			Message: fmt.Sprintf("appid is invalid: %s", fields.AppID),
			AppID:   fields.AppID,
			Err:     errors.New("no secret resolver configured"),
		}
		v.logFailure(ctx, "resolve", out)
		return out
	}

	secret, err := v.resolver.ResolveSecret(ctx, fields.AppID)
	if err != nil || secret == "" {
		out := Outcome{
			Code:    CodeUnknownAppID,
			Message: fmt.Sprintf("appid is invalid: %s", fields.AppID),
			AppID:   fields.AppID,
		}
		if err != nil && !errors.Is(err, ErrSecretNotFound) {
			out.Err = err
			out.Message = fmt.Sprintf("secret lookup failed for appid %s", fields.AppID)
		}
		v.logFailure(ctx, "resolve", out)
		return out
	}

	out := v.verifySignature(VerifyParams{
		AppID:              fields.AppID,
		SecretKey:          secret,
		Request:            opts.Request,
		Timestamp:          fields.Timestamp,
		Nonce:              fields.Nonce,
		Signature:          fields.Signature,
		VerifyTimestamp:    opts.VerifyTimestamp,
		TimestampValidTime: opts.TimestampValidTime,
		EndsWithSecretKey:  opts.EndsWithSecretKey,
	})
	if !out.OK() {
		stage := "compare"
		if out.Code == CodeTimestampInvalid {
			stage = "timestamp"
		}
		v.logFailure(ctx, stage, out)
	}
	return out
}

func (v *Verifier) logFailure(ctx context.Context, stage string, out Outcome) {
	fields := []logging.Field{
		logging.String("stage", stage),
		logging.String("appid", out.AppID),
		logging.Int("code", int(out.Code)),
		logging.String("reason", out.Message),
	}
	if out.Err != nil {
		fields = append(fields, logging.Err(out.Err))
	}
	v.logger.WithContext(ctx).Warn("Signature verification failed", fields...)
}
