// Package retry repeats reads that may come back empty while the engine's
// store catches up with a recent write.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds a retried read.
type Policy struct {
	// Attempts is the total number of invocations, including the first.
	Attempts int
	// Delay is the pause between invocations.
	Delay time.Duration
}

// DefaultPolicy makes 5 attempts one second apart.
var DefaultPolicy = Policy{Attempts: 5, Delay: time.Second}

// ErrEmptyResult is returned by Require when every attempt came back empty.
var ErrEmptyResult = errors.New("empty result after retries")

// Observer is notified before each repeated attempt (attempt counts from 2).
type Observer func(attempt int)

// Read invokes fn until it returns a non-empty result or the policy's
// attempts are spent.
//
// An always-empty read makes exactly policy.Attempts invocations and returns
// the last (empty) value with a nil error. An error from fn is returned
// immediately without further attempts. Cancellation during a delay returns
// ctx.Err().
func Read[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error), empty func(T) bool, observers ...Observer) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var result T
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			for _, obs := range observers {
				obs(attempt)
			}
			if err := wait(ctx, policy.Delay); err != nil {
				var zero T
				return zero, err
			}
		}

		var err error
		result, err = fn(ctx)
		if err != nil {
			return result, err
		}
		if !empty(result) {
			return result, nil
		}
	}
	return result, nil
}

// Require is Read that converts exhaustion into ErrEmptyResult.
func Require[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error), empty func(T) bool, observers ...Observer) (T, error) {
	result, err := Read(ctx, policy, fn, empty, observers...)
	if err != nil {
		return result, err
	}
	if empty(result) {
		return result, ErrEmptyResult
	}
	return result, nil
}

// EmptySlice reports whether s has no elements.
func EmptySlice[T any](s []T) bool {
	return len(s) == 0
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
