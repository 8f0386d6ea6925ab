// Package retry provides retry utilities with exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	// The wrapped function is called at most MaxRetries+1 times.
	MaxRetries int
	// BaseDelay is the delay before the first retry. The delay before
	// retry k is BaseDelay * 2^(k-1).
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff. Zero means no cap.
	MaxDelay time.Duration
	// Sleep is the wait function, overridable in tests. Defaults to a
	// context-aware time.After wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do executes fn with retry logic and exponential backoff. It returns nil
// on the first success, or the last-seen error once all attempts are spent.
// No delay follows the final attempt.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			delay := cfg.BaseDelay << attempt
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			if sleepErr := sleep(ctx, delay); sleepErr != nil {
				return fmt.Errorf("%w: %v", ErrContextCancelled, sleepErr)
			}
		}
	}

	return lastErr
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
