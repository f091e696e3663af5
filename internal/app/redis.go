package app

import (
	"context"

	"sigauth/internal/common/logging"
	"sigauth/internal/common/utils"
	"sigauth/internal/redis"
)

func (app *App) initializeRedis(ctx context.Context) error {
	if !app.Config.UsesRedis() {
		app.Logger.Info("Redis: Not required (memory, sqlite or postgres store without nonce guard)")
		return nil
	}

	redisConfig := &redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	}

	var client *redis.Client
	err := utils.RetryWithBackoff(ctx, utils.DefaultRetryConfig(), func() error {
		var err error
		client, err = redis.NewClient(redisConfig)
		return err
	})
	if err != nil {
		return err
	}

	app.RedisClient = client
	app.Logger.Info("Redis: Connected",
		logging.String("address", app.Config.RedisAddress),
		logging.Int("db", redisConfig.DB),
	)
	if app.Config.NonceGuardEnabled {
		app.Logger.Info("Nonce guard: Enabled")
	}
	return nil
}
