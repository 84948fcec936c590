// Package backoff retries calls to rate-limited services with jittered
// exponential delays.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries = 6
	DefaultBase       = time.Second
	maxJitter         = 0.25
)

// RateLimitError marks a "too many requests" failure. RetryAfter is the
// server-supplied wait, zero when the server sent none.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError marks a server-side failure worth retrying (5xx, timeouts).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient service error: %v", e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

// Controller retries rate-limit and transient failures up to MaxRetries times.
// A Controller is safe for concurrent use; retries of one call never overlap.
type Controller struct {
	MaxRetries int
	Base       time.Duration

	// Jitter returns a value in [0, 1); it is scaled to [0, 0.25).
	Jitter func() float64
	// Sleep blocks for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Controller. A negative maxRetries or a non-positive base
// selects the default.
func New(maxRetries int, base time.Duration) *Controller {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if base <= 0 {
		base = DefaultBase
	}
	return &Controller{
		MaxRetries: maxRetries,
		Base:       base,
		Jitter:     rand.Float64,
		Sleep:      sleepContext,
	}
}

// BaseDelay is the jitter-free delay before retry number attempt (1-based):
// Base * 2^(attempt-1).
func (c *Controller) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(c.Base) * math.Pow(2, float64(attempt-1)))
}

// Delay is BaseDelay(attempt) * (1 + jitter) with jitter in [0, 0.25).
func (c *Controller) Delay(attempt int) time.Duration {
	jitter := 0.0
	if c.Jitter != nil {
		jitter = c.Jitter() * maxJitter
	}
	return time.Duration(float64(c.BaseDelay(attempt)) * (1 + jitter))
}

// Do runs fn, retrying while it fails with a *RateLimitError or
// *TransientError. Once MaxRetries retries are spent the last error is
// returned unchanged; any other error is returned immediately.
func (c *Controller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		wait, retryable := c.waitFor(err, attempt)
		if !retryable {
			return err
		}
		if attempt > c.MaxRetries {
			log.Warn().Err(err).Str("op", op).Int("retries", c.MaxRetries).Msg("Retry budget exhausted")
			return err
		}

		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", wait).Msg("Retrying after backoff")
		sleep := c.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if serr := sleep(ctx, wait); serr != nil {
			return err
		}
	}
}

func (c *Controller) waitFor(err error, attempt int) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		if rl.RetryAfter > 0 {
			return rl.RetryAfter, true
		}
		return c.Delay(attempt), true
	}
	var te *TransientError
	if errors.As(err, &te) {
		return c.Delay(attempt), true
	}
	return 0, false
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, c *Controller, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsRetryable reports whether err is a rate-limit or transient failure.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	var te *TransientError
	return errors.As(err, &rl) || errors.As(err, &te)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
