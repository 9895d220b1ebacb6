// Package retry implements a bounded exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy retries an operation with exponentially growing delays. An error is
// retried only when Retryable reports true for it; anything else is returned
// immediately. When every attempt fails the last error is wrapped in
// *ExhaustedError.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// Retryable classifies errors worth another attempt. Nil means nothing
	// is retryable.
	Retryable func(error) bool

	// Sleep is swappable in tests. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError reports that all attempts failed with retryable errors.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget runs out. A delay is waited after every failed retryable
// attempt, doubling (times Multiplier) each time.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
