package app

import (
	"context"
	"fmt"

	"sigauth/internal/common/logging"
	"sigauth/internal/common/utils"
	"sigauth/internal/events"
	"sigauth/internal/secrets"
)

func (app *App) initializeSecrets(ctx context.Context) error {
	switch app.Config.SecretStore {
	case "postgres", "postgresql":
		app.Logger.Info("Secret store: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
	case "sqlite":
		app.Logger.Info("Secret store: SQLite", logging.String("path", app.Config.DatabasePath))
	default:
		app.Logger.Info("Secret store: " + app.Config.SecretStore)
	}

	opts := secrets.Options{
		Config:    app.Config,
		Redis:     app.RedisClient,
		Encryptor: app.Encryptor,
		Logger:    app.Logger,
	}

	var store secrets.Store
	err := utils.RetryWithBackoff(ctx, utils.DefaultRetryConfig(), func() error {
		var err error
		store, err = secrets.NewStore(ctx, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to initialize secret store: %w", err)
	}
	app.Secrets = store

	if app.Config.SecretStore != "memory" {
		return app.seedSecrets(ctx)
	}
	return nil
}

// seedSecrets copies APP_SECRETS into a persistent store so a fresh
// deployment can be bootstrapped from the environment.
func (app *App) seedSecrets(ctx context.Context) error {
	seed, err := app.Config.ParseAppSecrets()
	if err != nil {
		return err
	}

	for appid, secret := range seed {
		if err := app.Secrets.PutSecret(ctx, appid, secret); err != nil {
			return fmt.Errorf("failed to seed secret for %s: %w", appid, err)
		}
	}
	if len(seed) > 0 {
		app.Logger.Info("Seeded app secrets from APP_SECRETS", logging.Int("count", len(seed)))
	}
	return nil
}

func (app *App) initializeEvents(ctx context.Context) error {
	publisher, err := events.NewPublisher(ctx, app.Config, app.RedisClient, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	app.Publisher = publisher
	app.Logger.Info("Verification events", logging.String("backend", app.Config.EventsBackend))
	return nil
}
