package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pressline/feedsync/internal/remote"
)

// ErrDeadlineExceeded is returned when an operation's whole retry sequence
// exhausted its wall-clock deadline.
var ErrDeadlineExceeded = errors.New("refresh deadline exceeded")

// withRetry re-invokes op on any recoverable failure until it succeeds or
// the deadline runs out. The deadline spans the whole sequence, not one
// attempt, and is the only throttle: retries are immediate. Non-recoverable
// errors propagate at once.
func withRetry(ctx context.Context, deadline time.Duration, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var lastErr error
	err := retry.Do(ctx, retry.NewConstant(time.Millisecond), func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			if recoverable(err) {
				lastErr = err
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		if lastErr != nil {
			return fmt.Errorf("%w: last attempt: %v", ErrDeadlineExceeded, lastErr)
		}
		return ErrDeadlineExceeded
	}
	return err
}

// recoverable reports whether err belongs to the enumerated transient set:
// transport failure, HTTP-level error, undecodable payload, or a blown
// per-attempt deadline.
func recoverable(err error) bool {
	if _, ok := remote.IsRemote(err); ok {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
