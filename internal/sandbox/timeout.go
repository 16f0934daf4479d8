package sandbox

import (
	"context"
	"time"
)

// DefaultTimeout is the wall-clock budget for one strategy invocation.
const DefaultTimeout = 5 * time.Second

// interruptible is the part of the runtime the guard needs: goja's Interrupt
// preempts running script, so a timed-out body actually stops burning CPU
// instead of being abandoned.
type interruptible interface {
	Interrupt(v any)
}

// runWithTimeout races fn against the deadline. If the timer or the caller's
// context wins, the runtime is interrupted and the invocation fails with
// ErrTimeout (or the context error).
func runWithTimeout(ctx context.Context, vm interruptible, limit time.Duration, fn func() (any, error)) (any, error) {
	if limit <= 0 {
		limit = DefaultTimeout
	}

	type outcome struct {
		raw any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		raw, err := fn()
		done <- outcome{raw: raw, err: err}
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.raw, out.err
	case <-timer.C:
		vm.Interrupt(ErrTimeout.Error())
		return nil, ErrTimeout
	case <-ctx.Done():
		vm.Interrupt(ctx.Err().Error())
		return nil, ctx.Err()
	}
}
