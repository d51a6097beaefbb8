package feed

import (
	"context"
	"sync"

	"github.com/pressline/feedsync/internal/models"
)

// liveView is the switchable live source behind an executor. Downstream
// consumers hold one stable subscription while the underlying read mode
// (non-expired vs including-expired) is swapped out beneath them, so a swap
// never forces a re-subscribe and the flicker that would come with it.
//
// The mode and snapshot are mutated only from the executor's writer lane;
// readers always observe one fully-formed state.
type liveView struct {
	mu             sync.RWMutex
	includeExpired bool
	snapshot       []models.Post
	published      bool
	first          chan struct{}
	subs           map[int]chan []models.Post
	nextSub        int
}

func newLiveView() *liveView {
	return &liveView{
		first: make(chan struct{}),
		subs:  make(map[int]chan []models.Post),
	}
}

// setIncludeExpired swaps the underlying read mode
func (v *liveView) setIncludeExpired(include bool) {
	v.mu.Lock()
	v.includeExpired = include
	v.mu.Unlock()
}

// IncludeExpired reports the current read mode
func (v *liveView) IncludeExpired() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.includeExpired
}

// publish replaces the snapshot and fans it out. Each subscriber channel
// holds at most the latest value: a pending stale snapshot is dropped
// rather than queued.
func (v *liveView) publish(posts []models.Post) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.snapshot = posts
	if !v.published {
		v.published = true
		close(v.first)
	}

	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- posts:
		default:
		}
	}
}

// subscribe registers a consumer. The returned channel carries the latest
// snapshot, seeded with the current one if any; the function unsubscribes.
func (v *liveView) subscribe() (<-chan []models.Post, func()) {
	v.mu.Lock()
	ch := make(chan []models.Post, 1)
	if v.published {
		ch <- v.snapshot
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	v.mu.Unlock()

	unsubscribe := func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
	return ch, unsubscribe
}

// current returns the latest snapshot without waiting
func (v *liveView) current() []models.Post {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// wait blocks until the view has produced its first snapshot, then returns
// the current one
func (v *liveView) wait(ctx context.Context) ([]models.Post, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-v.first:
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot, nil
}
