// Package retry holds the single bounded-wait-and-retry primitive used by
// every UI action and by the per-record loop in the batch runner.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted wraps the last attempt error once the attempt budget
// is spent.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// Permanent marks an error as not worth retrying. Do returns it immediately.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so Do gives up without consuming further attempts.
func Stop(err error) error { return &Permanent{Err: err} }

// Do runs fn up to attempts times, sleeping backoff between attempts.
// It returns nil on the first success, the wrapped error when fn keeps
// failing, and the context error if ctx is cancelled while waiting.
func Do(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(last, &perm) {
			return perm.Err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrBudgetExhausted, attempts, last)
}

// Poll evaluates cond every interval until it reports true, an error, or the
// timeout elapses. A timeout surfaces as context.DeadlineExceeded so callers
// can classify it.
func Poll(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
