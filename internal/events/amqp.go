package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync"

	"github.com/streadway/amqp"

	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// amqpDialer opens a connection and a channel on it.
type amqpDialer func() (io.Closer, amqpChannel, error)

// AMQPPublisher sends events to a durable topic exchange. The routing key
// is the event type.
//
// When the broker closes the channel the session is dropped and the next
// Publish dials again. A publish that fails on a closed channel is retried
// once on a fresh session.
type AMQPPublisher struct {
	mu       sync.Mutex
	dial     amqpDialer
	exchange string
	conn     io.Closer
	ch       amqpChannel
	closed   bool
	logger   logging.Logger
}

// NewAMQPPublisher connects to url and declares exchange.
func NewAMQPPublisher(url, exchange string, logger logging.Logger) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.ConfigError("RABBITMQ_URL is required for rabbitmq events")
	}

	return newAMQPPublisher(exchange, func() (io.Closer, amqpChannel, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
		}
		return conn, ch, nil
	}, logger)
}

func newAMQPPublisher(exchange string, dial amqpDialer, logger logging.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, errors.ConfigError("events exchange is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	p := &AMQPPublisher{
		dial:     dial,
		exchange: exchange,
		logger:   logger.WithFields(logging.String("component", "events_rabbitmq")),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// connectLocked dials a new session. Callers hold mu.
func (p *AMQPPublisher) connectLocked() error {
	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		return errors.ConnectionError("failed to declare exchange", err)
	}

	p.conn, p.ch = conn, ch
	go p.watch(ch, ch.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// watch drops the session once the broker closes ch.
func (p *AMQPPublisher) watch(ch amqpChannel, closed <-chan *amqp.Error) {
	reason, ok := <-closed

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != ch {
		return
	}
	p.dropLocked()

	fields := []logging.Field{logging.String("exchange", p.exchange)}
	if ok && reason != nil {
		fields = append(fields, logging.String("reason", reason.Error()))
	}
	p.logger.Warn("RabbitMQ channel closed, reconnecting on next publish", fields...)
}

// dropLocked closes the current session, if any. Callers hold mu.
func (p *AMQPPublisher) dropLocked() error {
	if p.ch == nil {
		return nil
	}
	ch, conn := p.ch, p.conn
	p.ch, p.conn = nil, nil

	chErr := ch.Close()
	var connErr error
	if conn != nil {
		connErr = conn.Close()
	}
	if chErr != nil {
		return chErr
	}
	return connErr
}

// Publish sends event with the event type as routing key.
func (p *AMQPPublisher) Publish(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Time,
		MessageId:    event.RequestID,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.ConnectionError("RabbitMQ publisher is closed", amqp.ErrClosed)
	}

	for attempt := 0; ; attempt++ {
		if p.ch == nil {
			if err := p.connectLocked(); err != nil {
				return err
			}
		}

		err = p.ch.Publish(p.exchange, event.Type, false, false, msg)
		if err == nil {
			return nil
		}

		p.dropLocked()
		if attempt > 0 || !stderrors.Is(err, amqp.ErrClosed) {
			return errors.ConnectionError("failed to publish event to RabbitMQ", err)
		}
	}
}

// connected reports whether a session is open.
func (p *AMQPPublisher) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch != nil
}

// Close closes the session. Later publishes fail.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.dropLocked()
}
