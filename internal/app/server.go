package app

import (
	"context"

	"sigauth/internal/server"
)

// RunServer creates the HTTP server with all handlers configured
func (app *App) RunServer() *server.Server {
	return server.New(app.Routes(), app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile)
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		app.Cleanup()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
