package app

import (
	"context"

	"sigauth/internal/auth"
	"sigauth/internal/common/logging"
	"sigauth/internal/config"
	"sigauth/internal/crypto"
	"sigauth/internal/events"
	"sigauth/internal/ratelimit"
	"sigauth/internal/redis"
	"sigauth/internal/secrets"
	"sigauth/internal/signature"
)

// App holds all the application dependencies
type App struct {
	Config       *config.Config
	VerifyConfig signature.VerifyConfig
	Secrets      secrets.Store
	Signer       *signature.Signer
	Verifier     *signature.Verifier
	Auth         *auth.Auth
	Publisher    events.Publisher
	Limiter      *ratelimit.Limiter
	RedisClient  *redis.Client
	Encryptor    *crypto.ConfigEncryptor
	Logger       logging.Logger
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	verifyCfg, err := cfg.SignatureConfig()
	if err != nil {
		return nil, err
	}
	app.VerifyConfig = verifyCfg

	// Initialize components in order of dependency
	if err := app.initializeRedis(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeEncryption(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeSecrets(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeAuth(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeEvents(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeRateLimit(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeSignature()

	return app, nil
}

func (app *App) initializeSignature() {
	logger := app.Logger.WithFields(logging.String("component", "signature"))
	app.Signer = signature.NewSigner(nil, nil, logger)
	app.Verifier = signature.NewVerifier(app.Secrets, nil, logger)

	app.Logger.Info("Signature verification configured",
		logging.Bool("verify_timestamp", app.VerifyConfig.VerifyTimestamp),
		logging.Int64("timestamp_valid_time", app.VerifyConfig.TimestampValidTime),
		logging.Bool("verify_hash_name", app.VerifyConfig.VerifyHashName),
		logging.Bool("with_hash_name", app.VerifyConfig.WithHashName),
		logging.Bool("pair_value", app.VerifyConfig.PairValue),
		logging.Bool("ends_with_secret_key", app.VerifyConfig.EndsWithSecretKey),
		logging.Bool("nonce_guard", app.Config.NonceGuardEnabled),
	)
}

func (app *App) initializeRateLimit() error {
	cfg, err := app.Config.RateLimitConfig()
	if err != nil {
		return err
	}
	limiter, err := ratelimit.NewLimiter(cfg)
	if err != nil {
		return err
	}
	app.Limiter = limiter

	if cfg.Enabled {
		app.Logger.Info("Rate limit: Enabled",
			logging.Any("requests_per_second", cfg.RequestsPerSecond),
			logging.Int("burst", cfg.BurstSize),
		)
	}
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			app.Logger.Warn("Error closing event publisher", logging.Err(err))
		}
	}
	if app.Secrets != nil {
		if err := app.Secrets.Close(); err != nil {
			app.Logger.Warn("Error closing secret store", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
