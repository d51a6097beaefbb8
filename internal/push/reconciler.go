package push

import (
	"context"
	"fmt"
)

// SubscriptionStore is the store surface the reconciler consumes.
// *db.Store satisfies it.
type SubscriptionStore interface {
	SubscribedCategorySlugs(ctx context.Context) ([]string, error)
	SubscribedTagSlugs(ctx context.Context) ([]string, error)
}

// Reconciler compares a server-declared interest set against the locally
// recorded subscription rows.
type Reconciler struct {
	store SubscriptionStore
}

// NewReconciler creates a subscription reconciler over store
func NewReconciler(store SubscriptionStore) *Reconciler {
	return &Reconciler{store: store}
}

// Partition splits the candidate category and tag slugs into those the user
// is still subscribed to and those they are not. Unsubscribed facets are
// what a caller prunes from its remote push registration.
func (r *Reconciler) Partition(ctx context.Context, categorySlugs, tagSlugs []string) (subscribed, unsubscribed []string, err error) {
	categories, err := r.store.SubscribedCategorySlugs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read category subscriptions: %w", err)
	}
	tags, err := r.store.SubscribedTagSlugs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tag subscriptions: %w", err)
	}

	subscribed, unsubscribed = split(categorySlugs, categories)
	tagSub, tagUnsub := split(tagSlugs, tags)
	subscribed = append(subscribed, tagSub...)
	unsubscribed = append(unsubscribed, tagUnsub...)
	return subscribed, unsubscribed, nil
}

func split(candidates, recorded []string) (in, out []string) {
	set := make(map[string]bool, len(recorded))
	for _, slug := range recorded {
		set[slug] = true
	}
	for _, slug := range candidates {
		if set[slug] {
			in = append(in, slug)
		} else {
			out = append(out, slug)
		}
	}
	return in, out
}
