package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pressline/feedsync/internal/remote"
)

func TestWithRetry_RecoversAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), time.Second, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &remote.Error{Kind: remote.KindHTTP, Op: "list posts", Status: 502}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetry_NonRecoverableStopsImmediately(t *testing.T) {
	fatal := errors.New("schema violation")
	attempts := 0
	err := withRetry(context.Background(), time.Second, func(context.Context) error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("withRetry() error = %v, want %v", err, fatal)
	}
	if errors.Is(err, ErrDeadlineExceeded) {
		t.Error("non-recoverable failure must not map to the deadline error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWithRetry_DeadlineYieldsSingleError(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 30*time.Millisecond, func(context.Context) error {
		attempts++
		return &remote.Error{Kind: remote.KindDecode, Op: "list posts", Err: errors.New("bad payload")}
	})

	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("withRetry() error = %v, want ErrDeadlineExceeded", err)
	}
	if !strings.Contains(err.Error(), "bad payload") {
		t.Errorf("error %q should carry the last attempt's failure", err)
	}
	if attempts < 2 {
		t.Errorf("attempts = %d, want several before the deadline", attempts)
	}
}

func TestWithRetry_CancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, time.Second, func(ctx context.Context) error {
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("withRetry() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrDeadlineExceeded) {
		t.Error("cancellation must not map to the deadline error")
	}
}
