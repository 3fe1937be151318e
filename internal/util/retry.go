package util

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Backoff retries an operation with exponentially growing waits: Base before
// the first retry, doubled after each failure and capped at Max (0 = no cap).
type Backoff struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// DefaultBackoff waits 1s, 2s, 4s... up to 30s between attempts.
func DefaultBackoff(maxRetries int) Backoff {
	return Backoff{MaxRetries: maxRetries, Base: time.Second, Max: 30 * time.Second}
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// retryAfterError carries a wait requested by the remote side.
type retryAfterError struct {
	err  error
	wait time.Duration
}

func (r *retryAfterError) Error() string { return r.err.Error() }
func (r *retryAfterError) Unwrap() error { return r.err }

// RetryAfter wraps err so the next attempt waits for wait instead of the
// computed backoff. Max still applies.
func RetryAfter(err error, wait time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryAfterError{err: err, wait: max(0, wait)}
}

// Do calls fn up to MaxRetries+1 times. fn receives the 0-indexed attempt and
// returns nil on success. A cancelled ctx stops the loop with ctx.Err().
// Errors wrapped with Permanent are returned unwrapped without retrying.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == b.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		timer := time.NewTimer(b.wait(attempt, lastErr))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("failed after %d retries: %w", b.MaxRetries, lastErr)
}

func (b Backoff) wait(attempt int, err error) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < math.MaxInt64/2; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		d *= 2
	}
	var ra *retryAfterError
	if errors.As(err, &ra) {
		d = ra.wait
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
