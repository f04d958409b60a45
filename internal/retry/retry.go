// Package retry runs an operation again while it fails with a retryable
// error, backing off exponentially between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

type options struct {
	initial time.Duration
	max     time.Duration
}

type Option func(*options)

func WithInitialInterval(d time.Duration) Option {
	return func(o *options) { o.initial = d }
}

func WithMaxInterval(d time.Duration) Option {
	return func(o *options) { o.max = d }
}

// Do calls op up to attempts times. It stops at the first success, at the
// first error for which retryable returns false, or when ctx is done. When
// every attempt failed retryably, the last error is returned wrapped in
// ErrAttemptsExhausted.
func Do(ctx context.Context, attempts int, retryable func(error) bool, op func(ctx context.Context) error) error {
	return DoWith(ctx, attempts, retryable, op)
}

func DoWith(ctx context.Context, attempts int, retryable func(error) bool, op func(ctx context.Context) error, opts ...Option) error {
	if attempts < 1 {
		attempts = 1
	}

	o := options{initial: 10 * time.Millisecond, max: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.initial
	exp.MaxInterval = o.max
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	var lastErr error
	tried := 0
	err := backoff.Retry(func() error {
		tried++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err == nil {
		return nil
	}

	if lastErr != nil && retryable(lastErr) && tried >= attempts {
		return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, tried, lastErr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil && retryable(lastErr) {
		return fmt.Errorf("retry interrupted: %w", errors.Join(ctxErr, lastErr))
	}
	return err
}
