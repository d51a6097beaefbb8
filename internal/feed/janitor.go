package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pressline/feedsync/pkg/logging"
)

// purgeStore is the store surface the janitor consumes. *db.Store satisfies it.
type purgeStore interface {
	PurgeExpired(ctx context.Context, insertCutoff time.Time) (int64, error)
}

// Janitor periodically removes posts whose cache insertion is older than
// the hard expiry. Soft-expired posts stay in the store so that views in
// including-expired mode keep rendering them; only the hard window deletes.
type Janitor struct {
	store    purgeStore
	hard     time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewJanitor creates a purge loop over store
func NewJanitor(store purgeStore, hardExpiry, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Janitor{
		store:    store,
		hard:     hardExpiry,
		interval: interval,
		now:      time.Now,
		logger:   logging.WithComponent("janitor"),
	}
}

// Run purges on a fixed interval until the context is cancelled
func (j *Janitor) Run(ctx context.Context) error {
	j.logger.Info("Starting cache janitor",
		zap.Duration("hard_expiry", j.hard),
		zap.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := j.purgeOnce(ctx); err != nil {
				j.logger.Error("Purge pass failed", zap.Error(err))
			}
			j.wait(ctx)
		}
	}
}

func (j *Janitor) purgeOnce(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.hard)
	purged, err := j.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		j.logger.Info("Purged expired posts", zap.Int64("count", purged))
	}
	return nil
}

// wait waits for the purge interval or until the context is cancelled
func (j *Janitor) wait(ctx context.Context) {
	timer := time.NewTimer(j.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
