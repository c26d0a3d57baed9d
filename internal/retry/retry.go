// Package retry implements bounded exponential backoff for transient,
// connection-level failures talking to Postgres.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Config controls backoff shape.
type Config struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	EnableJitter  bool
}

// DefaultConfig caps a call at 3 attempts in all (the first try plus 2
// retries), matching the bound placed on connection-level database errors.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:    2,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		EnableJitter:  true,
	}
}

// Func is an operation that can be retried.
type Func func() error

// IsRetryable reports whether err is worth retrying.
type IsRetryable func(error) bool

// WithBackoff runs fn, retrying up to config.MaxRetries times with
// exponential backoff while isRetryable(err) holds. A nil config falls
// back to DefaultConfig.
func WithBackoff(ctx context.Context, config *Config, fn Func, isRetryable IsRetryable) error {
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay(config, attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries {
			break
		}
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

func delay(config *Config, attempt int) time.Duration {
	d := time.Duration(float64(config.BaseDelay) * math.Pow(config.BackoffFactor, float64(attempt-1)))
	if d > config.MaxDelay {
		d = config.MaxDelay
	}
	if config.EnableJitter {
		d += time.Duration(rand.Float64() * float64(d) * 0.1)
	}
	return d
}

// IsConnectionError reports whether err looks like a transient
// connection-level Postgres failure rather than a query or constraint
// error. Only connection-level failures are retried; constraint
// violations (duplicate key, check failure) must surface immediately.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"too many connections",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"driver: bad connection",
		"server closed the connection unexpectedly",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
