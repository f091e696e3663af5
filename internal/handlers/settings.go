package handlers

import (
	"net/http"
)

// Settings handlers

// GetSettings returns the effective service configuration
// @Summary Get service settings
// @Description Returns the effective configuration with secrets redacted
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Service settings (sensitive fields redacted)"
// @Router /api/settings [get]
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		h.sendJSONResponse(w, map[string]string{})
		return
	}

	h.sendJSONResponse(w, FilterSensitiveSettings(h.config.Settings()))
}
