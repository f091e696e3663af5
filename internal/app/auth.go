package app

import (
	"sigauth/internal/auth"
	"sigauth/internal/crypto"
)

func (app *App) initializeAuth() error {
	// a nil *redis.Client must not become a non-nil interface
	var revocations auth.RevocationStore
	if app.RedisClient != nil {
		revocations = app.RedisClient
	}

	authInstance, err := auth.New(app.Config.JWTSecret, revocations, app.Logger)
	if err != nil {
		return err
	}
	app.Auth = authInstance
	return nil
}

func (app *App) initializeEncryption() error {
	encryptionKey := app.Config.EncryptionKey
	if encryptionKey == "" {
		app.Logger.Info("Secret encryption at rest disabled (no encryption key provided)")
		return nil
	}

	encryptor, err := crypto.NewConfigEncryptor(encryptionKey)
	if err != nil {
		return err
	}

	app.Encryptor = encryptor
	app.Logger.Info("Secret encryption at rest enabled")
	return nil
}
