package feed

import (
	"context"
	"time"
)

// Window bounds the non-expired read of the post table. The zero Window
// accepts everything recorded so far.
type Window struct {
	// MinPublished is the oldest publish date still fit for display.
	MinPublished time.Time
}

// windowStore is the single store query the selector needs.
type windowStore interface {
	NewestExpiredPublishDate(ctx context.Context, insertCutoff time.Time) (time.Time, error)
}

// SelectWindow computes which cached posts are eligible for display.
//
// With includeExpired false it applies the expiry-gap rule: once any row's
// cache-insertion time has aged past now-expiry, every post published before
// that row is also treated as expired, even when its own insertion is fresh.
// A sparse cache must not render as if the feed were dense. The threshold is
// therefore the newest publish date among rows inserted before the cutoff;
// the boundary row itself stays visible.
//
// With includeExpired true both bounds are maximally permissive.
func SelectWindow(ctx context.Context, store windowStore, now time.Time, expiry time.Duration, includeExpired bool) (Window, error) {
	if includeExpired {
		return Window{}, nil
	}

	insertCutoff := now.Add(-expiry)
	threshold, err := store.NewestExpiredPublishDate(ctx, insertCutoff)
	if err != nil {
		return Window{}, err
	}
	return Window{MinPublished: threshold}, nil
}
