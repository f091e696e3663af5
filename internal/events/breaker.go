package events

import (
	"context"

	"sigauth/internal/circuitbreaker"
)

// BreakerPublisher stops publishing to a broker that keeps failing, so a
// dead broker does not add its timeout to every rejected request.
type BreakerPublisher struct {
	next    Publisher
	breaker *circuitbreaker.Breaker
}

// NewBreakerPublisher wraps next so its calls go through breaker.
func NewBreakerPublisher(next Publisher, breaker *circuitbreaker.Breaker) *BreakerPublisher {
	return &BreakerPublisher{next: next, breaker: breaker}
}

// Publish forwards event unless the breaker is open, in which case it
// returns a connection error without calling next.
func (p *BreakerPublisher) Publish(ctx context.Context, event Event) error {
	return p.breaker.Execute(ctx, func() error {
		return p.next.Publish(ctx, event)
	})
}

// Close closes the wrapped publisher.
func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}
