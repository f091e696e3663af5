// Package events publishes verification outcomes so failed or replayed
// requests can be alerted on outside the service.
package events

import (
	"context"
	"fmt"
	"time"

	"sigauth/internal/circuitbreaker"
	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
	"sigauth/internal/config"
	"sigauth/internal/redis"
)

const (
	TypeVerificationFailed    = "verification.failed"
	TypeVerificationSucceeded = "verification.succeeded"
)

// Event describes one verification attempt.
type Event struct {
	Type       string    `json:"type"`
	AppID      string    `json:"appid,omitempty"`
	Code       int       `json:"code"`
	Message    string    `json:"message"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Time       time.Time `json:"time"`
}

// Publisher delivers events. Implementations are safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger logging.Logger
}

// NewLogPublisher logs through logger, or the global logger when nil.
func NewLogPublisher(logger logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogPublisher{logger: logger.WithFields(logging.String("component", "events"))}
}

// Publish logs event at info level.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("Verification event",
		logging.String("type", event.Type),
		logging.String("appid", event.AppID),
		logging.Int("code", event.Code),
		logging.String("message", event.Message),
		logging.String("method", event.Method),
		logging.String("path", event.Path),
		logging.String("remote_addr", event.RemoteAddr),
		logging.String("request_id", event.RequestID),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

// RedisPublisher sends events as JSON over Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher publishes on channel through client.
func NewRedisPublisher(client *redis.Client, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required for redis events")
	}
	if channel == "" {
		return nil, errors.ConfigError("events channel is required")
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Publish sends event as JSON on the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if err := p.client.Publish(ctx, p.channel, event); err != nil {
		return errors.ConnectionError("failed to publish event to redis", err)
	}
	return nil
}

// Close leaves the shared client open.
func (p *RedisPublisher) Close() error { return nil }

// NewPublisher builds the publisher selected by EVENTS_BACKEND. External
// brokers are wrapped in a circuit breaker.
func NewPublisher(ctx context.Context, cfg *config.Config, client *redis.Client, logger logging.Logger) (Publisher, error) {
	switch cfg.EventsBackend {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "redis":
		return NewRedisPublisher(client, cfg.EventsChannel)
	case "rabbitmq":
		pub, err := NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsChannel, logger)
		if err != nil {
			return nil, err
		}
		return NewBreakerPublisher(pub, circuitbreaker.New("events-rabbitmq", circuitbreaker.BrokerConfig, logger)), nil
	case "sns":
		pub, err := NewSNSPublisher(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			return nil, err
		}
		return NewBreakerPublisher(pub, circuitbreaker.New("events-sns", circuitbreaker.BrokerConfig, logger)), nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported events backend: %s", cfg.EventsBackend))
	}
}
