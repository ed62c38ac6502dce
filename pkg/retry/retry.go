// Package retry runs outbound calls under a bounded exponential backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// BaseDelay is the wait before the first retry. Later waits grow by Multiplier.
	BaseDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Multiplier scales the delay after every retry.
	Multiplier float64
	// Jitter randomizes each delay by up to this fraction in either direction.
	Jitter float64
	// Timeout bounds each individual attempt. Zero means no per-attempt bound.
	Timeout time.Duration
}

// DefaultPolicy retries twice, waiting 250ms then 500ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2,
		Jitter:     0,
		Timeout:    10 * time.Second,
	}
}

// Operation is a single attempt of a retried call.
type Operation func(ctx context.Context) error

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context ends or the attempts run out.
// The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, op Operation, notify Notify) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		if p.Timeout <= 0 {
			return op(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		return op(attemptCtx)
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}

	return backoff.RetryNotify(wrapped, p.backOff(ctx), onRetry)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.MaxInterval = p.MaxDelay
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = p.Jitter
	exp.MaxElapsedTime = 0 // Bounded by the attempt count instead.
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.Reset()

	retries := 0
	if p.Attempts > 1 {
		retries = p.Attempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}
