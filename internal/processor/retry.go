package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venue-discovery/internal/constants"
	errs "venue-discovery/pkg/errors"
)

// Policy bounds how a stage is attempted.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration // backoff before attempt n+1 is n*BaseDelay
	Timeout     time.Duration // per attempt

	// OnFailure, when set, observes every failed attempt from the calling
	// goroutine.
	OnFailure func(attempt int, err error)
}

// DefaultPolicy uses the package defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: constants.RetryAttemptsDefault,
		BaseDelay:   constants.RetryBaseDelayDefault,
		Timeout:     constants.StageTimeoutDefault,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = constants.StageTimeoutDefault
	}
	return p
}

type outcome[T any] struct {
	val T
	err error
}

// Retry runs op until it succeeds or p.MaxAttempts attempts have failed. Each
// attempt races p.Timeout; an attempt that loses the race is abandoned and its
// eventual result dropped. It returns the number of attempts made. Parent
// context cancellation stops retrying immediately.
func Retry[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.normalized()
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}
		v, err := attemptOnce(ctx, p.Timeout, op)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err
		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}
		if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}
		if attempt == p.MaxAttempts {
			break
		}
		if delay := time.Duration(attempt) * p.BaseDelay; delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return zero, attempt, ctx.Err()
			}
		}
	}
	return zero, p.MaxAttempts, lastErr
}

func attemptOnce[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so an abandoned attempt can still deliver and exit
	done := make(chan outcome[T], 1)
	go func() {
		var o outcome[T]
		defer func() {
			if r := recover(); r != nil {
				o = outcome[T]{err: errs.NewBiz("processor", fmt.Sprintf("stage panicked: %v", r), nil)}
			}
			done <- o
		}()
		o.val, o.err = op(actx)
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %v", errs.ErrStageTimeout, timeout)
		}
		return o.val, o.err
	case <-actx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %v", errs.ErrStageTimeout, timeout)
	}
}
