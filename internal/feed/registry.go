package feed

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pressline/feedsync/internal/models"
	"github.com/pressline/feedsync/pkg/logging"
)

// Registry hands out one executor per query fingerprint. Executors are
// created on first use and live until the registry closes.
type Registry struct {
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	executors map[string]*Executor
	closed    bool
}

// NewRegistry creates an executor registry sharing one set of options
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:      opts,
		logger:    logging.WithComponent("registry"),
		executors: make(map[string]*Executor),
	}
}

// Executor returns the executor bound to query, creating it on first use
func (r *Registry) Executor(query models.Query) *Executor {
	fingerprint := query.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	if e, ok := r.executors[fingerprint]; ok {
		return e
	}

	e := NewExecutor(query, r.opts)
	r.executors[fingerprint] = e
	r.logger.Info("Created feed executor",
		zap.String("fingerprint", fingerprint),
		zap.Bool("empty_query", query.IsEmpty()))

	return e
}

// ByFingerprint returns an existing executor, or nil when none is bound
func (r *Registry) ByFingerprint(fingerprint string) *Executor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executors[fingerprint]
}

// RefreshQuery queues a newer-posts refresh on the executor bound to
// fingerprint, reporting whether one was bound
func (r *Registry) RefreshQuery(fingerprint string) bool {
	e := r.ByFingerprint(fingerprint)
	if e == nil {
		return false
	}
	e.RequestNewerPosts()
	return true
}

// ScheduleRefresh queues a newer-posts refresh on every live executor.
// Used when a push trigger announces new remote content.
func (r *Registry) ScheduleRefresh() {
	r.mu.Lock()
	executors := make([]*Executor, 0, len(r.executors))
	for _, e := range r.executors {
		executors = append(executors, e)
	}
	r.mu.Unlock()

	for _, e := range executors {
		e.RequestNewerPosts()
	}
}

// SchedulePostRefresh queues a single-post refresh on every live executor
func (r *Registry) SchedulePostRefresh(postID int64) {
	r.mu.Lock()
	executors := make([]*Executor, 0, len(r.executors))
	for _, e := range r.executors {
		executors = append(executors, e)
	}
	r.mu.Unlock()

	for _, e := range executors {
		e.Refresh(postID)
	}
}

// Close stops every executor and rejects further lookups
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	executors := make([]*Executor, 0, len(r.executors))
	for _, e := range r.executors {
		executors = append(executors, e)
	}
	r.executors = make(map[string]*Executor)
	r.mu.Unlock()

	start := time.Now()
	for _, e := range executors {
		e.Close()
	}
	r.logger.Info("Closed feed executors",
		zap.Int("count", len(executors)),
		zap.Duration("took", time.Since(start)))
}
