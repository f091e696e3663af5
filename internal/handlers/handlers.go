// Package handlers implements the HTTP endpoints of the signing service: the
// health check, the signature-protected demo API and the admin API.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
	"sigauth/internal/config"
	"sigauth/internal/secrets"
	"sigauth/internal/signature"
)

// Version is reported by the health check.
var Version = "dev"

// maxRequestBody bounds admin request bodies.
const maxRequestBody = 1 << 20

type Handlers struct {
	store     secrets.Store
	signer    *signature.Signer
	verifier  *signature.Verifier
	verifyCfg signature.VerifyConfig
	config    *config.Config
	logger    logging.Logger
}

func New(store secrets.Store, signer *signature.Signer, verifier *signature.Verifier, verifyCfg signature.VerifyConfig, cfg *config.Config, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		store:     store,
		signer:    signer,
		verifier:  verifier,
		verifyCfg: verifyCfg,
		config:    cfg,
		logger:    logger.WithFields(logging.String("component", "handlers")),
	}
}

// ErrorBody is the JSON body of a failed admin request.
type ErrorBody struct {
	Error string `json:"error"`
}

func (h *Handlers) sendJSONResponse(w http.ResponseWriter, data interface{}) {
	h.sendJSONStatus(w, http.StatusOK, data)
}

func (h *Handlers) sendJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// sendJSONError logs logMsg with err and writes userMsg to the client.
func (h *Handlers) sendJSONError(w http.ResponseWriter, r *http.Request, err error, logMsg, userMsg string, status int) {
	logger := h.logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(logMsg, err, logging.String("path", r.URL.Path))
	} else if err != nil {
		logger.Warn(logMsg, logging.String("path", r.URL.Path), logging.Err(err))
	}
	h.sendJSONStatus(w, status, ErrorBody{Error: userMsg})
}

// sendAppError maps an AppError type to a status and uses its message.
func (h *Handlers) sendAppError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status := statusForError(err)
	userMsg := http.StatusText(status)
	var appErr *errors.AppError
	if status < http.StatusInternalServerError && stderrors.As(err, &appErr) {
		userMsg = appErr.Message
	}
	h.sendJSONError(w, r, err, logMsg, userMsg, status)
}

func statusForError(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeAuth:
		return http.StatusUnauthorized
	case errors.ErrTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.ValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}
