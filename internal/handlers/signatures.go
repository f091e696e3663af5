package handlers

import (
	stderrors "errors"
	"net/http"

	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
	"sigauth/internal/common/validation"
	"sigauth/internal/signature"
)

// CreateSignatureRequest describes a request to sign with a stored secret.
// Unset format flags fall back to the server's verification settings.
type CreateSignatureRequest struct {
	AppID string `json:"appid" validate:"required,max=128,appid"`
	signature.Request
	WithHashName      *bool `json:"with_hash_name,omitempty"`
	PairValue         *bool `json:"pair_value,omitempty"`
	EndsWithSecretKey *bool `json:"ends_with_secret_key,omitempty"`
}

// VerificationRequest describes a received request and its header value.
type VerificationRequest struct {
	HeaderValue string `json:"header_value"`
	signature.Request
}

// VerificationResponse reports a verification outcome.
type VerificationResponse struct {
	OK       bool   `json:"ok"`
	Code     int    `json:"code"`
	CodeName string `json:"code_name"`
	Message  string `json:"message"`
	AppID    string `json:"appid,omitempty"`
}

// CreateSignature signs a described request with an app's stored secret
// @Summary Sign a request
// @Description Developer tooling: produces the header a client would send
// @Tags signatures
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateSignatureRequest true "Request to sign"
// @Success 200 {object} signature.SignedRequest
// @Failure 400 {object} ErrorBody "Invalid request"
// @Failure 404 {object} ErrorBody "Unknown app"
// @Router /api/signatures [post]
func (h *Handlers) CreateSignature(w http.ResponseWriter, r *http.Request) {
	var req CreateSignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendAppError(w, r, err, "Invalid signature request")
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		h.sendAppError(w, r, err, "Invalid signature request")
		return
	}

	secret, err := h.store.ResolveSecret(r.Context(), req.AppID)
	if stderrors.Is(err, signature.ErrSecretNotFound) || (err == nil && secret == "") {
		h.sendAppError(w, r, errors.NotFoundError("app "+req.AppID), "Signature requested for unknown app")
		return
	}
	if err != nil {
		h.sendAppError(w, r, err, "Failed to resolve app secret")
		return
	}

	opts := signature.GenerateOptions{
		AppID:             req.AppID,
		SecretKey:         secret,
		Request:           req.Request,
		WithHashName:      boolOr(req.WithHashName, h.verifyCfg.WithHashName),
		PairValue:         boolOr(req.PairValue, h.verifyCfg.PairValue),
		EndsWithSecretKey: boolOr(req.EndsWithSecretKey, h.verifyCfg.EndsWithSecretKey),
	}

	signed, err := h.signer.Generate(opts)
	if err != nil {
		h.sendAppError(w, r, err, "Failed to sign request")
		return
	}

	h.logger.WithContext(r.Context()).Debug("Request signed for app",
		logging.String("appid", req.AppID),
		logging.String("url", signed.URL),
	)
	h.sendJSONResponse(w, signed)
}

// CreateVerification verifies a described request the way the middleware would
// @Summary Verify a signature header
// @Tags signatures
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VerificationRequest true "Received request"
// @Success 200 {object} VerificationResponse
// @Failure 400 {object} ErrorBody "Invalid request"
// @Router /api/verifications [post]
func (h *Handlers) CreateVerification(w http.ResponseWriter, r *http.Request) {
	var req VerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendAppError(w, r, err, "Invalid verification request")
		return
	}

	out := h.verifier.VerifyHeader(r.Context(), signature.HeaderVerifyOptions{
		HeaderValue:  req.HeaderValue,
		Request:      req.Request,
		VerifyConfig: h.verifyCfg,
	})

	h.sendJSONResponse(w, VerificationResponse{
		OK:       out.OK(),
		Code:     int(out.Code),
		CodeName: out.Code.String(),
		Message:  out.Message,
		AppID:    out.AppID,
	})
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
