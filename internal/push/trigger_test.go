package push

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeSubscriptions struct {
	categories []string
	tags       []string
	err        error
}

func (f *fakeSubscriptions) SubscribedCategorySlugs(context.Context) ([]string, error) {
	return f.categories, f.err
}

func (f *fakeSubscriptions) SubscribedTagSlugs(context.Context) ([]string, error) {
	return f.tags, f.err
}

type fakeScheduler struct {
	bound     map[string]bool
	refreshed []string
	fanOuts   int
}

func (f *fakeScheduler) RefreshQuery(fingerprint string) bool {
	if !f.bound[fingerprint] {
		return false
	}
	f.refreshed = append(f.refreshed, fingerprint)
	return true
}

func (f *fakeScheduler) ScheduleRefresh() {
	f.fanOuts++
}

func TestPartition(t *testing.T) {
	store := &fakeSubscriptions{
		categories: []string{"news", "tech"},
		tags:       []string{"go"},
	}
	r := NewReconciler(store)

	subscribed, unsubscribed, err := r.Partition(context.Background(),
		[]string{"news", "sports"}, []string{"go", "rust"})
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	if want := []string{"news", "go"}; !reflect.DeepEqual(subscribed, want) {
		t.Errorf("subscribed = %v, want %v", subscribed, want)
	}
	if want := []string{"sports", "rust"}; !reflect.DeepEqual(unsubscribed, want) {
		t.Errorf("unsubscribed = %v, want %v", unsubscribed, want)
	}
}

func TestPartition_StoreError(t *testing.T) {
	wantErr := errors.New("db gone")
	r := NewReconciler(&fakeSubscriptions{err: wantErr})

	if _, _, err := r.Partition(context.Background(), []string{"news"}, nil); !errors.Is(err, wantErr) {
		t.Fatalf("Partition() error = %v, want %v", err, wantErr)
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name          string
		trigger       Trigger
		wantScheduled bool
		wantFanOuts   int
		wantRefreshed int
	}{
		{
			name:    "empty payload dropped silently",
			trigger: Trigger{},
		},
		{
			name:    "only unsubscribed facets",
			trigger: Trigger{Categories: []string{"sports"}},
		},
		{
			name:          "subscribed category fans out",
			trigger:       Trigger{Categories: []string{"news"}},
			wantScheduled: true,
			wantFanOuts:   1,
		},
		{
			name:          "extra topics always count as subscribed",
			trigger:       Trigger{ExtraTopics: []string{"editorial"}},
			wantScheduled: true,
			wantFanOuts:   1,
		},
		{
			name:          "debug flag overrides unsubscribed",
			trigger:       Trigger{Categories: []string{"sports"}, Debug: true},
			wantScheduled: true,
			wantFanOuts:   1,
		},
		{
			name:          "bound fingerprint refreshed directly",
			trigger:       Trigger{Fingerprint: "abc", Categories: []string{"news"}},
			wantScheduled: true,
			wantRefreshed: 1,
		},
		{
			name:          "unbound fingerprint falls back to fan-out",
			trigger:       Trigger{Fingerprint: "nope", Categories: []string{"news"}},
			wantScheduled: true,
			wantFanOuts:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := &fakeScheduler{bound: map[string]bool{"abc": true}}
			h := NewHandler(NewReconciler(&fakeSubscriptions{
				categories: []string{"news"},
			}), scheduler)

			result, err := h.Handle(context.Background(), tt.trigger)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if result.Scheduled != tt.wantScheduled {
				t.Errorf("Scheduled = %v, want %v", result.Scheduled, tt.wantScheduled)
			}
			if scheduler.fanOuts != tt.wantFanOuts {
				t.Errorf("fan-outs = %d, want %d", scheduler.fanOuts, tt.wantFanOuts)
			}
			if len(scheduler.refreshed) != tt.wantRefreshed {
				t.Errorf("targeted refreshes = %d, want %d", len(scheduler.refreshed), tt.wantRefreshed)
			}
		})
	}
}

func TestHandle_ReportsUnsubscribedForPruning(t *testing.T) {
	h := NewHandler(NewReconciler(&fakeSubscriptions{
		categories: []string{"news"},
	}), &fakeScheduler{})

	result, err := h.Handle(context.Background(), Trigger{
		Categories: []string{"news", "sports"},
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if want := []string{"sports"}; !reflect.DeepEqual(result.Unsubscribed, want) {
		t.Errorf("Unsubscribed = %v, want %v", result.Unsubscribed, want)
	}
}
