package retry

import (
	"context"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Logger defines a function for logging retry attempts
type Logger func(message string, args ...interface{})

// Options configures retry behavior
type Options struct {
	Config Config

	// IsRetryable decides whether a given failure is worth another attempt.
	// Nil means every error is retryable.
	IsRetryable func(err error) bool

	Logger Logger
	Name   string
}

// calculateDelay computes the delay before the given attempt using exponential backoff
func (c Config) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is exhausted. fn is called at most Config.MaxAttempts times.
func Do(ctx context.Context, opts Options, fn func(attempt int) error) error {
	maxAttempts := opts.Config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := opts.Config.calculateDelay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger("%s retry attempt %d/%d after %v delay", opts.Name, attempt+1, maxAttempts, delay)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn(attempt)
		if err == nil {
			if attempt > 0 && opts.Logger != nil {
				opts.Logger("%s succeeded on attempt %d/%d", opts.Name, attempt+1, maxAttempts)
			}
			return nil
		}
		lastErr = err

		// Context cancellation is never worth another attempt.
		if ctx.Err() != nil {
			return err
		}

		if opts.IsRetryable != nil && !opts.IsRetryable(err) {
			return err
		}

		if opts.Logger != nil {
			opts.Logger("%s attempt %d/%d failed: %v", opts.Name, attempt+1, maxAttempts, err)
		}
	}

	return &ExhaustedError{
		Name:     opts.Name,
		Attempts: maxAttempts,
		Last:     lastErr,
	}
}

// ExhaustedError represents an error when all retry attempts have been exhausted
type ExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return "retry attempts exhausted for " + e.Name
}

// Unwrap exposes the last underlying failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
