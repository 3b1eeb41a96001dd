// Package resilience provides reliability patterns for external service calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careflow-io/careflow/internal/domain"
)

// RetryPolicy bounds each attempt and controls backoff between attempts.
// MaxRetries counts retries after the first attempt, so MaxRetries=2 means
// at most three attempts.
type RetryPolicy struct {
	AttemptTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffFactor  int

	sleep func(context.Context, time.Duration) error // for testing
}

// NewRetryPolicy builds a policy with the given bounds. A BackoffFactor
// below 2 is raised to 2.
func NewRetryPolicy(attemptTimeout time.Duration, maxRetries int, backoffBase time.Duration, backoffFactor int) RetryPolicy {
	if backoffFactor < 2 {
		backoffFactor = 2
	}
	return RetryPolicy{
		AttemptTimeout: attemptTimeout,
		MaxRetries:     maxRetries,
		BackoffBase:    backoffBase,
		BackoffFactor:  backoffFactor,
		sleep:          sleepCtx,
	}
}

// Do runs fn with a per-attempt timeout, retrying on transient failures.
// Only errors wrapping domain.ErrUnavailable (or attempt timeouts) are
// retried; semantic failures such as domain.ErrNotFound return immediately.
// The last error is returned once retries are exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	delay := p.BackoffBase
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= time.Duration(p.BackoffFactor)
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Transient(err) {
			return err
		}
	}

	return fmt.Errorf("retries exhausted: %w", lastErr)
}

// Transient reports whether an error is worth retrying: a transport-level
// unavailability, an attempt that ran out of time, or a rejected call while
// the circuit is open.
func Transient(err error) bool {
	return errors.Is(err, domain.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCircuitOpen)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
