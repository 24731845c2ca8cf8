// Package retry runs operations with exponential backoff. It is used for
// DuckDB write conflicts and for probing remote sampling targets.
//
//	err := retry.Do(ctx, retry.Config{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond},
//	    func() error { return source.Probe(ctx) }, nil)
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config defines the backoff schedule. MaxRetries and InitialBackoff must
// be positive.
type Config struct {
	// MaxRetries is the total number of attempts.
	MaxRetries int

	// InitialBackoff is the wait before the second attempt; it doubles for
	// each further attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait. Zero means uncapped.
	MaxBackoff time.Duration

	// Jitter adds up to this fraction of the wait, growing with the attempt
	// number. Zero disables it.
	Jitter float64

	// OnRetry, when set, is called before each wait with the attempt that
	// just failed (starting at 1) and its error.
	OnRetry func(attempt int, err error)
}

// ShouldRetryFunc reports whether err is transient. A nil ShouldRetryFunc
// retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. Exhaustion wraps the last error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("retry: MaxRetries must be positive, got %d", cfg.MaxRetries)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt-1, lastErr)
			}
			if err := sleep(ctx, backoff(cfg, attempt-1)); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns the wait after the given failed attempt (1-based):
// InitialBackoff * 2^(attempt-1), capped, plus jitter proportional to
// attempt/MaxRetries.
func backoff(cfg Config, attempt int) time.Duration {
	d := cfg.InitialBackoff << (attempt - 1)
	if d <= 0 || (cfg.MaxBackoff > 0 && d > cfg.MaxBackoff) {
		d = cfg.MaxBackoff
	}
	if cfg.Jitter > 0 {
		d += time.Duration(float64(d) * cfg.Jitter * float64(attempt) / float64(cfg.MaxRetries))
	}
	return d
}
