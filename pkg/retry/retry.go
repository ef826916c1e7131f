package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/adaoss/Mail2printer/pkg/errors"
)

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) IsRetryable() bool {
	return true
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// NewFatalError marks an error as not worth retrying (bad credentials,
// malformed configuration). Retry stops immediately and returns it.
func NewFatalError(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func newBackoff(ctx context.Context, policy Policy) backoff.BackOff {
	var b backoff.BackOff
	if policy.MaxElapsedTime > 0 {
		b = ExponentialBackoffWithMaxElapsed(
			policy.InitialInterval,
			policy.MaxInterval,
			policy.MaxElapsedTime,
			policy.Multiplier,
		)
	} else {
		b = ExponentialBackoff(
			policy.InitialInterval,
			policy.MaxInterval,
			policy.Multiplier,
		)
	}

	b = backoff.WithContext(b, ctx)
	return backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
}

func classify(err error) error {
	var fatalErr apperrors.FatalError
	if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
		return backoff.Permanent(err)
	}

	var retryableErr apperrors.RetryableError
	if !errors.As(err, &retryableErr) {
		// Default: treat as retryable
		return NewRetryableError(err)
	}

	return err
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	b := newBackoff(ctx, policy)

	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		return classify(err)
	}

	return backoff.Retry(operation, b)
}

// RetryWithCallback behaves like Retry but reports each failed attempt,
// which the poll loop uses to log reconnect progress.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	b := newBackoff(ctx, policy)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		err = classify(err)

		if onRetry != nil && attempt < policy.MaxAttempts {
			var permanentErr *backoff.PermanentError
			if !errors.As(err, &permanentErr) {
				nextDelay := CalculateBackoffDuration(attempt, policy.InitialInterval, policy.Multiplier, policy.MaxInterval)
				onRetry(attempt, err, nextDelay)
			}
		}

		return err
	}

	return backoff.Retry(operation, b)
}
