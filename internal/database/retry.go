package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfitz/whiteboard/internal/slogging"
)

// RetryConfig controls how transient database failures are retried
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the retry policy used for event writes
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// WithRetry runs fn until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx ends. Delays double from BaseDelay up to MaxDelay.
func WithRetry(ctx context.Context, cfg RetryConfig, op string, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			// #nosec G115 - attempt is bounded by MaxAttempts
			delay := cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			slogging.Get().Debug("Retrying %s in %v (attempt %d/%d)", op, delay, attempt+1, cfg.MaxAttempts)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), lastErr)
			case <-time.After(delay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		lastErr = err
		slogging.Get().Warn("%s failed with retryable error (attempt %d/%d): %v", op, attempt+1, cfg.MaxAttempts, err)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

var retryablePatterns = []string{
	"bad connection",
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"unexpected eof",
	"no connection available",
	"connection timed out",
	"server closed",
	"invalid connection",
	"connection unexpectedly closed",
	"could not serialize access",
	"deadlock detected",
	"the database system is starting up",
	"database is locked",
}

// IsRetryableError reports whether err looks like a transient connection or
// locking failure. Context cancellation is never retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
