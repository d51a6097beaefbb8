package push

import (
	"context"

	"go.uber.org/zap"

	"github.com/pressline/feedsync/pkg/logging"
)

// Trigger is an incoming push event announcing remote content changes.
// Extra topics are server-side interest facets outside the local taxonomy
// and always count as subscribed.
type Trigger struct {
	Fingerprint string   `json:"query"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	ExtraTopics []string `json:"extra_topics"`
	Debug       bool     `json:"debug"`
}

func (t Trigger) empty() bool {
	return len(t.Categories) == 0 && len(t.Tags) == 0 && len(t.ExtraTopics) == 0
}

// Scheduler queues feed refreshes. *feed.Registry satisfies it.
type Scheduler interface {
	// RefreshQuery refreshes one bound query, reporting whether it was bound.
	RefreshQuery(fingerprint string) bool
	// ScheduleRefresh refreshes every bound query.
	ScheduleRefresh()
}

// Result reports what a trigger caused.
type Result struct {
	Scheduled    bool
	Subscribed   []string
	Unsubscribed []string
}

// Handler decides whether an incoming trigger warrants a feed refresh.
type Handler struct {
	reconciler *Reconciler
	scheduler  Scheduler
	logger     *zap.Logger
}

// NewHandler creates a trigger handler
func NewHandler(reconciler *Reconciler, scheduler Scheduler) *Handler {
	return &Handler{
		reconciler: reconciler,
		scheduler:  scheduler,
		logger:     logging.WithComponent("push"),
	}
}

// Handle processes one trigger. A payload naming no facet at all is treated
// as noise and dropped without error. A refresh is scheduled only when at
// least one named facet is still subscribed, or the debug flag is set.
func (h *Handler) Handle(ctx context.Context, t Trigger) (Result, error) {
	if t.empty() && !t.Debug {
		h.logger.Debug("Dropping trigger naming no facets")
		return Result{}, nil
	}

	subscribed, unsubscribed, err := h.reconciler.Partition(ctx, t.Categories, t.Tags)
	if err != nil {
		return Result{}, err
	}
	subscribed = append(subscribed, t.ExtraTopics...)

	if len(subscribed) == 0 && !t.Debug {
		h.logger.Info("Trigger names only unsubscribed facets",
			zap.Strings("unsubscribed", unsubscribed))
		return Result{Unsubscribed: unsubscribed}, nil
	}

	if t.Fingerprint != "" && h.scheduler.RefreshQuery(t.Fingerprint) {
		h.logger.Info("Scheduled refresh for bound query",
			zap.String("fingerprint", t.Fingerprint))
	} else {
		h.scheduler.ScheduleRefresh()
		h.logger.Info("Scheduled refresh for all bound queries",
			zap.Strings("subscribed", subscribed))
	}

	return Result{
		Scheduled:    true,
		Subscribed:   subscribed,
		Unsubscribed: unsubscribed,
	}, nil
}
