package handlers

import (
	"context"
	"net/http"
	"time"

	"sigauth/internal/middleware"
	"sigauth/internal/signature"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports service and secret store health
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Failure 503 {object} map[string]interface{} "Secret store unavailable"
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}
	if h.config != nil {
		status["store_type"] = h.config.SecretStore
	}

	code := http.StatusOK
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Health(ctx); err != nil {
		status["status"] = "unhealthy"
		status["store_status"] = "unhealthy"
		status["store_error"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		status["store_status"] = "healthy"
	}

	h.sendJSONStatus(w, code, status)
}

// EchoResponse is returned by the signature-protected demo endpoint.
type EchoResponse struct {
	AppID  string          `json:"appid"`
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Query  signature.Query `json:"query"`
}

// Echo answers an authenticated request with what the server saw
// @Summary Authenticated echo
// @Tags demo
// @Produce json
// @Security SignatureAuth
// @Success 200 {object} EchoResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /v1/{path} [get]
func (h *Handlers) Echo(w http.ResponseWriter, r *http.Request) {
	query, err := signature.ParseQuery(r.URL.RawQuery)
	if err != nil {
		// the signature middleware rejects these first
		query = signature.Query{}
	}
	if query == nil {
		query = signature.Query{}
	}

	appid, _ := middleware.AppIDFromContext(r.Context())
	h.sendJSONResponse(w, EchoResponse{
		AppID:  appid,
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  query,
	})
}
