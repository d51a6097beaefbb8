package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pressline/feedsync/internal/models"
)

func TestLiveView_WaitBlocksUntilFirstPublish(t *testing.T) {
	v := newLiveView()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := v.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wait() before publish error = %v, want deadline exceeded", err)
	}

	v.publish(nil)
	posts, err := v.wait(context.Background())
	if err != nil {
		t.Fatalf("wait() after publish error = %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("posts = %v, want the empty first snapshot", posts)
	}
}

func TestLiveView_SubscriberSeesLatestOnly(t *testing.T) {
	v := newLiveView()
	ch, unsubscribe := v.subscribe()
	defer unsubscribe()

	// Nobody reads between these; the slow consumer must get only the last.
	v.publish([]models.Post{{ID: 1}})
	v.publish([]models.Post{{ID: 2}})

	select {
	case posts := <-ch:
		if len(posts) != 1 || posts[0].ID != 2 {
			t.Errorf("posts = %v, want only the latest snapshot", posts)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received a snapshot")
	}
}

func TestLiveView_SubscribeSeedsCurrentSnapshot(t *testing.T) {
	v := newLiveView()
	v.publish([]models.Post{{ID: 7}})

	ch, unsubscribe := v.subscribe()
	defer unsubscribe()

	select {
	case posts := <-ch:
		if len(posts) != 1 || posts[0].ID != 7 {
			t.Errorf("posts = %v, want the snapshot published before subscribing", posts)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription was not seeded")
	}
}

func TestLiveView_UnsubscribeStopsDelivery(t *testing.T) {
	v := newLiveView()
	ch, unsubscribe := v.subscribe()
	unsubscribe()

	v.publish([]models.Post{{ID: 1}})

	select {
	case posts := <-ch:
		t.Errorf("received %v after unsubscribe", posts)
	default:
	}
}

func TestLiveView_ModeSurvivesSubscription(t *testing.T) {
	v := newLiveView()
	ch, unsubscribe := v.subscribe()
	defer unsubscribe()

	v.setIncludeExpired(true)
	v.publish([]models.Post{{ID: 1}})
	v.setIncludeExpired(false)
	v.publish([]models.Post{{ID: 2}})

	// The same channel keeps delivering across mode swaps.
	select {
	case posts := <-ch:
		if len(posts) != 1 || posts[0].ID != 2 {
			t.Errorf("posts = %v, want the post-swap snapshot", posts)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription broke across the mode swap")
	}
}
