package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"sigauth/internal/common/logging"
	"sigauth/internal/common/validation"
	"sigauth/internal/secrets"
)

// PutAppRequest carries the secret to store for an appid.
type PutAppRequest struct {
	SecretKey string `json:"secret_key" validate:"required,max=4096"`
}

// AppResponse describes a stored app. The secret is never returned.
type AppResponse struct {
	AppID   string `json:"appid"`
	Exists  bool   `json:"exists"`
	Created bool   `json:"created,omitempty"`
}

// PutApp stores or replaces the secret of an app
// @Summary Store an app secret
// @Tags apps
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param appid path string true "App id"
// @Param app body PutAppRequest true "Secret"
// @Success 200 {object} AppResponse "Secret replaced"
// @Success 201 {object} AppResponse "App created"
// @Failure 400 {object} ErrorBody "Invalid appid or secret"
// @Router /api/apps/{appid} [put]
func (h *Handlers) PutApp(w http.ResponseWriter, r *http.Request) {
	appid := mux.Vars(r)["appid"]
	if err := secrets.ValidateAppID(appid); err != nil {
		h.sendAppError(w, r, err, "Invalid appid")
		return
	}

	var req PutAppRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendAppError(w, r, err, "Invalid app request")
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		h.sendAppError(w, r, err, "Invalid app request")
		return
	}

	existed, err := h.store.Exists(r.Context(), appid)
	if err != nil {
		h.sendAppError(w, r, err, "Failed to check app")
		return
	}

	if err := h.store.PutSecret(r.Context(), appid, req.SecretKey); err != nil {
		h.sendAppError(w, r, err, "Failed to store app secret")
		return
	}

	h.logger.WithContext(r.Context()).Info("App secret stored",
		logging.String("appid", appid),
		logging.Bool("created", !existed),
	)

	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
	}
	h.sendJSONStatus(w, status, AppResponse{AppID: appid, Exists: true, Created: !existed})
}

// GetApp reports whether an app exists
// @Summary Check an app
// @Tags apps
// @Produce json
// @Security BearerAuth
// @Param appid path string true "App id"
// @Success 200 {object} AppResponse
// @Router /api/apps/{appid} [get]
func (h *Handlers) GetApp(w http.ResponseWriter, r *http.Request) {
	appid := mux.Vars(r)["appid"]
	if err := secrets.ValidateAppID(appid); err != nil {
		h.sendAppError(w, r, err, "Invalid appid")
		return
	}

	exists, err := h.store.Exists(r.Context(), appid)
	if err != nil {
		h.sendAppError(w, r, err, "Failed to check app")
		return
	}

	h.sendJSONResponse(w, AppResponse{AppID: appid, Exists: exists})
}

// DeleteApp removes an app and its secret
// @Summary Delete an app
// @Tags apps
// @Security BearerAuth
// @Param appid path string true "App id"
// @Success 204 "Deleted"
// @Failure 404 {object} ErrorBody "Unknown app"
// @Router /api/apps/{appid} [delete]
func (h *Handlers) DeleteApp(w http.ResponseWriter, r *http.Request) {
	appid := mux.Vars(r)["appid"]
	if err := secrets.ValidateAppID(appid); err != nil {
		h.sendAppError(w, r, err, "Invalid appid")
		return
	}

	if err := h.store.DeleteSecret(r.Context(), appid); err != nil {
		h.sendAppError(w, r, err, "Failed to delete app")
		return
	}

	h.logger.WithContext(r.Context()).Info("App deleted", logging.String("appid", appid))
	w.WriteHeader(http.StatusNoContent)
}
