package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "sigauth/docs"

	"sigauth/internal/handlers"
	"sigauth/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authMiddleware, rateLimitMiddleware, signatureMiddleware func(http.Handler) http.Handler) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)

	// Health check (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// API documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Admin API - requires a bearer token
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)

	api.HandleFunc("/apps/{appid}", h.PutApp).Methods("PUT")
	api.HandleFunc("/apps/{appid}", h.GetApp).Methods("GET")
	api.HandleFunc("/apps/{appid}", h.DeleteApp).Methods("DELETE")

	api.HandleFunc("/signatures", h.CreateSignature).Methods("POST")
	api.HandleFunc("/verifications", h.CreateVerification).Methods("POST")

	api.HandleFunc("/settings", h.GetSettings).Methods("GET")

	// Signed API - every request must carry a valid signature header
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(rateLimitMiddleware)
	v1.Use(signatureMiddleware)
	v1.HandleFunc("/{path:.*}", h.Echo).Methods("GET", "POST", "PUT", "PATCH", "DELETE")
}

// Routes builds the application's router.
func (app *App) Routes() http.Handler {
	h := handlers.New(
		app.Secrets,
		app.Signer,
		app.Verifier,
		app.VerifyConfig,
		app.Config,
		app.Logger,
	)

	opts := middleware.SignatureAuthOptions{
		Verifier:  app.Verifier,
		Config:    app.VerifyConfig,
		Header:    app.Config.SignatureHeader,
		Publisher: app.Publisher,
		Logger:    app.Logger,
	}
	if app.Config.NonceGuardEnabled && app.RedisClient != nil {
		opts.Nonces = app.RedisClient
	}

	router := mux.NewRouter()
	SetupRoutes(router, h,
		app.Auth.RequireAuth,
		middleware.RateLimit(app.Limiter, app.Logger),
		middleware.SignatureAuth(opts),
	)
	return router
}
