// Package config provides configuration management for the sigauth service.
// It loads configuration from environment variables with sensible defaults
// and validates it so the service refuses to start with an unsafe setup.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path, stdout when empty
//   - TLS_CERT_FILE / TLS_KEY_FILE: Serve HTTPS when both are set
//
// Secret Storage:
//   - SECRET_STORE: "memory", "sqlite", "postgres" or "redis" (default: memory)
//   - APP_SECRETS: Seed for the memory store, "app1=secret1,app2=secret2"
//   - DATABASE_PATH: SQLite database file path (default: ./sigauth.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL connection
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE: Redis connection
//   - CONFIG_ENCRYPTION_KEY: Encrypts stored secrets at rest (32 characters if provided)
//
// Signature Verification:
//   - SIGNATURE_HEADER: Header carrying the signature (default: Authorization)
//   - VERIFY_TIMESTAMP: Reject stale timestamps (default: true)
//   - TIMESTAMP_VALID_TIME: Replay window in seconds (default: 300)
//   - VERIFY_HASH_NAME: Require the "HMAC-SHA256" prefix (default: true)
//   - WITH_HASH_NAME: Expect an algorithm prefix (default: true)
//   - PAIR_VALUE: Expect key=value pairs instead of colon fields (default: false)
//   - ENDS_WITH_SECRET_KEY: Append the secret to the canonical string (default: false)
//   - NONCE_GUARD_ENABLED: Reject a nonce seen twice within the window, needs Redis (default: false)
//   - RATE_LIMIT_RPS: Signed requests per second per client IP, 0 disables (default: 0)
//   - RATE_LIMIT_BURST: Requests a client may send at once (default: 20)
//
// Admin API:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//
// Verification Events:
//   - EVENTS_BACKEND: "log", "redis", "rabbitmq" or "sns" (default: log)
//   - EVENTS_CHANNEL: Redis channel or RabbitMQ exchange (default: sigauth.verification)
//   - RABBITMQ_URL: RabbitMQ connection URL
//   - AWS_REGION, SNS_TOPIC_ARN: SNS target
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"sigauth/internal/ratelimit"
	"sigauth/internal/signature"
)

// Config holds all configuration values for the sigauth service.
//
// The configuration is loaded using Load() and should be validated using
// Validate() before use.
type Config struct {
	// Application settings
	Port        string
	LogLevel    string
	LogFile     string
	TLSCertFile string
	TLSKeyFile  string

	// Secret storage
	SecretStore  string // memory, sqlite, postgres or redis
	AppSecrets   string // appid=secret pairs for the memory store
	DatabasePath string

	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	EncryptionKey string

	// Signature verification
	SignatureHeader    string
	VerifyTimestamp    bool
	TimestampValidTime string
	VerifyHashName     bool
	WithHashName       bool
	PairValue          bool
	EndsWithSecretKey  bool
	NonceGuardEnabled  bool
	RateLimitRPS       string
	RateLimitBurst     string

	// Admin API
	JWTSecret string

	// Verification events
	EventsBackend string
	EventsChannel string
	RabbitMQURL   string
	AWSRegion     string
	SNSTopicARN   string
}

// Load creates a Config from environment variables, falling back to
// defaults for anything unset. It does not validate.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		SecretStore:  strings.ToLower(getEnv("SECRET_STORE", "memory")),
		AppSecrets:   getEnv("APP_SECRETS", ""),
		DatabasePath: getEnv("DATABASE_PATH", "./sigauth.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "sigauth"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),

		SignatureHeader:    getEnv("SIGNATURE_HEADER", "Authorization"),
		VerifyTimestamp:    getBoolEnv("VERIFY_TIMESTAMP", true),
		TimestampValidTime: getEnv("TIMESTAMP_VALID_TIME", "300"),
		VerifyHashName:     getBoolEnv("VERIFY_HASH_NAME", true),
		WithHashName:       getBoolEnv("WITH_HASH_NAME", true),
		PairValue:          getBoolEnv("PAIR_VALUE", false),
		EndsWithSecretKey:  getBoolEnv("ENDS_WITH_SECRET_KEY", false),
		NonceGuardEnabled:  getBoolEnv("NONCE_GUARD_ENABLED", false),
		RateLimitRPS:       getEnv("RATE_LIMIT_RPS", "0"),
		RateLimitBurst:     getEnv("RATE_LIMIT_BURST", "20"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		EventsBackend: strings.ToLower(getEnv("EVENTS_BACKEND", "log")),
		EventsChannel: getEnv("EVENTS_CHANNEL", "sigauth.verification"),
		RabbitMQURL:   getEnv("RABBITMQ_URL", ""),
		AWSRegion:     getEnv("AWS_REGION", ""),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
// Values strconv.ParseBool rejects fall back to the default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, formats and cross-field dependencies.
//
// The application should call this method after loading configuration and
// before starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	switch c.SecretStore {
	case "memory":
		if _, err := c.ParseAppSecrets(); err != nil {
			return err
		}
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when using the sqlite secret store")
		}
	case "postgres", "postgresql":
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	case "redis":
	default:
		return fmt.Errorf("SECRET_STORE must be 'memory', 'sqlite', 'postgres' or 'redis'")
	}

	if c.UsesRedis() {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required for the redis secret store, nonce guard or redis events")
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.SignatureHeader == "" {
		return fmt.Errorf("SIGNATURE_HEADER must not be empty")
	}
	if _, err := c.SignatureConfig(); err != nil {
		return err
	}
	if _, err := c.RateLimitConfig(); err != nil {
		return err
	}

	switch c.EventsBackend {
	case "log", "redis":
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENTS_BACKEND is rabbitmq")
		}
	case "sns":
		if c.SNSTopicARN == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required when EVENTS_BACKEND is sns")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be 'log', 'redis', 'rabbitmq' or 'sns'")
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("CONFIG_ENCRYPTION_KEY must be exactly 32 characters (256 bits) when provided")
	}

	return nil
}

// UsesRedis reports whether any enabled component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.SecretStore == "redis" || c.NonceGuardEnabled || c.EventsBackend == "redis"
}

// SignatureConfig returns the header verification options.
func (c *Config) SignatureConfig() (signature.VerifyConfig, error) {
	window, err := strconv.ParseInt(c.TimestampValidTime, 10, 64)
	if err != nil {
		return signature.VerifyConfig{}, fmt.Errorf("TIMESTAMP_VALID_TIME must be a number of seconds")
	}

	cfg := signature.VerifyConfig{
		VerifyTimestamp:    c.VerifyTimestamp,
		TimestampValidTime: window,
		VerifyHashName:     c.VerifyHashName,
		WithHashName:       c.WithHashName,
		PairValue:          c.PairValue,
		EndsWithSecretKey:  c.EndsWithSecretKey,
	}
	if err := cfg.Validate(); err != nil {
		return signature.VerifyConfig{}, err
	}
	return cfg, nil
}

// RateLimitConfig returns the per-client limit for the signed API.
func (c *Config) RateLimitConfig() (ratelimit.Config, error) {
	rps, burst := 0.0, 20
	var err error
	if c.RateLimitRPS != "" {
		rps, err = strconv.ParseFloat(c.RateLimitRPS, 64)
		if err != nil || rps < 0 {
			return ratelimit.Config{}, fmt.Errorf("RATE_LIMIT_RPS must be a non-negative number")
		}
	}
	if c.RateLimitBurst != "" {
		burst, err = strconv.Atoi(c.RateLimitBurst)
		if err != nil || burst < 1 {
			return ratelimit.Config{}, fmt.Errorf("RATE_LIMIT_BURST must be a positive number")
		}
	}

	cfg := ratelimit.Config{
		Enabled:           rps > 0,
		RequestsPerSecond: rps,
		BurstSize:         burst,
	}
	if err := cfg.Validate(); err != nil {
		return ratelimit.Config{}, err
	}
	return cfg, nil
}

// ParseAppSecrets parses APP_SECRETS into an appid to secret map.
func (c *Config) ParseAppSecrets() (map[string]string, error) {
	secrets := make(map[string]string)
	if strings.TrimSpace(c.AppSecrets) == "" {
		return secrets, nil
	}

	for _, entry := range strings.Split(c.AppSecrets, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		appid, secret, ok := strings.Cut(entry, "=")
		appid, secret = strings.TrimSpace(appid), strings.TrimSpace(secret)
		if !ok || appid == "" || secret == "" {
			return nil, fmt.Errorf("APP_SECRETS entry %q must look like appid=secret", entry)
		}
		secrets[appid] = secret
	}
	return secrets, nil
}

// PostgresDSN builds a connection string for pgx.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     c.PostgresHost + ":" + c.PostgresPort,
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}

// RedisDBNumber returns REDIS_DB as an int. Validate rejects bad values.
func (c *Config) RedisDBNumber() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as an int, 10 when invalid.
func (c *Config) RedisPoolSizeNumber() int {
	size, err := strconv.Atoi(c.RedisPoolSize)
	if err != nil || size < 1 {
		return 10
	}
	return size
}

// Settings lists the effective configuration keyed by lower-cased
// environment variable name. Callers exposing it must redact secrets.
func (c *Config) Settings() map[string]string {
	return map[string]string{
		"port":                  c.Port,
		"log_level":             c.LogLevel,
		"tls_enabled":           strconv.FormatBool(c.TLSCertFile != ""),
		"secret_store":          c.SecretStore,
		"app_secrets":           c.AppSecrets,
		"database_path":         c.DatabasePath,
		"postgres_host":         c.PostgresHost,
		"postgres_db":           c.PostgresDB,
		"postgres_password":     c.PostgresPassword,
		"redis_address":         c.RedisAddress,
		"redis_password":        c.RedisPassword,
		"config_encryption_key": c.EncryptionKey,
		"jwt_secret":            c.JWTSecret,
		"signature_header":      c.SignatureHeader,
		"verify_timestamp":      strconv.FormatBool(c.VerifyTimestamp),
		"timestamp_valid_time":  c.TimestampValidTime,
		"verify_hash_name":      strconv.FormatBool(c.VerifyHashName),
		"with_hash_name":        strconv.FormatBool(c.WithHashName),
		"pair_value":            strconv.FormatBool(c.PairValue),
		"ends_with_secret_key":  strconv.FormatBool(c.EndsWithSecretKey),
		"nonce_guard_enabled":   strconv.FormatBool(c.NonceGuardEnabled),
		"rate_limit_rps":        c.RateLimitRPS,
		"rate_limit_burst":      c.RateLimitBurst,
		"events_backend":        c.EventsBackend,
		"events_channel":        c.EventsChannel,
		"rabbitmq_url":          c.RabbitMQURL,
		"aws_region":            c.AWSRegion,
		"sns_topic_arn":         c.SNSTopicARN,
	}
}
