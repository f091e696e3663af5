// Package ratelimit throttles callers per key with token buckets from
// golang.org/x/time/rate.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config represents rate limiter configuration
type Config struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`

	// MaxKeys bounds the number of tracked keys before idle ones are dropped.
	MaxKeys int `json:"max_keys,omitempty"`
	// CleanupPeriod is how long an idle key keeps its bucket.
	CleanupPeriod time.Duration `json:"cleanup_period,omitempty"`
}

// Validate fills defaults and rejects impossible settings.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize <= 0 {
		c.BurstSize = int(c.RequestsPerSecond)
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
	if c.CleanupPeriod <= 0 {
		c.CleanupPeriod = 5 * time.Minute
	}
	return nil
}

// Limiter keeps one token bucket per key. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
	now         func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewLimiter validates config and creates a limiter.
func NewLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}, nil
}

// Enabled reports whether the limiter throttles at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Enabled
}

// Allow takes a token for key, reporting false when its bucket is empty.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > l.config.CleanupPeriod {
		l.cleanup(now)
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
		}
		l.limiters[key] = entry
		if len(l.limiters) > l.config.MaxKeys {
			l.cleanup(now)
		}
	}
	entry.lastUsed = now
	return entry.limiter.AllowN(now, 1)
}

// RetryAfter is the wait a throttled caller is told about.
func (l *Limiter) RetryAfter() time.Duration {
	if !l.Enabled() {
		return 0
	}
	d := time.Duration(float64(time.Second) / l.config.RequestsPerSecond)
	if d < time.Second {
		return time.Second
	}
	return d
}

// cleanup drops idle buckets. Callers hold mu.
func (l *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-l.config.CleanupPeriod)
	for key, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = now
}

// Stats returns rate limiter statistics
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"enabled":             l.config.Enabled,
		"requests_per_second": l.config.RequestsPerSecond,
		"burst_size":          l.config.BurstSize,
		"active_keys":         len(l.limiters),
		"max_keys":            l.config.MaxKeys,
		"last_cleanup":        l.lastCleanup.Format(time.RFC3339),
	}
}
