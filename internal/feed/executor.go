package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pressline/feedsync/internal/cache"
	"github.com/pressline/feedsync/internal/models"
	"github.com/pressline/feedsync/internal/remote"
	"github.com/pressline/feedsync/pkg/logging"
	"github.com/pressline/feedsync/pkg/telemetry"
)

var (
	// ErrNotCached is returned when a by-id lookup misses for an id that an
	// already-imported post references. That is a local consistency bug, not
	// a transient condition, and is never retried.
	ErrNotCached = errors.New("entity not cached")

	// ErrClosed is returned for operations submitted to a closed executor
	ErrClosed = errors.New("executor closed")
)

// lookupTTL bounds how long point lookups live in the Redis cache
const lookupTTL = 10 * time.Minute

// State identifies what an executor is currently doing
type State int32

// Executor states. Exactly one applies at a time per instance.
const (
	StateIdle State = iota
	StateRefreshingNewer
	StateRefreshingOlder
	StateRefreshingOne
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateRefreshingNewer:
		return "refreshing-newer"
	case StateRefreshingOlder:
		return "refreshing-older"
	case StateRefreshingOne:
		return "refreshing-one"
	default:
		return "idle"
	}
}

// Handle tracks one requested operation. Cancelling aborts the retry loop
// at its next checkpoint; store writes that already completed stay in place
// (idempotent upsert makes a later retry safe).
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Cancel aborts the operation
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the operation finished, successfully or not
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the operation outcome; only meaningful after Done is closed
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// Options configures an executor
type Options struct {
	Store   Store
	API     ContentAPI
	Lookups *cache.Cache // optional point-lookup cache, may be nil

	// Expiry is how long a cached post counts as fresh after insertion.
	Expiry time.Duration
	// RefreshDeadline bounds one whole retry sequence.
	RefreshDeadline time.Duration
	// MaxWorkers bounds concurrent metadata fetches.
	MaxWorkers int
	// ErrorSink receives operation failures; may be nil.
	ErrorSink func(error)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type opRequest struct {
	state  State
	ctx    context.Context
	handle *Handle
	fn     func(ctx context.Context) error
}

// Executor keeps the cached feed for one bound query consistent with the
// remote content API while exposing a continuously readable live view.
// Operations are serialized in call order onto a single writer lane; the
// view is readable in every state.
type Executor struct {
	query    models.Query
	store    Store
	resolver *Resolver
	api      ContentAPI
	lookups  *cache.Cache
	view     *liveView
	errSink  func(error)
	expiry   time.Duration
	deadline time.Duration
	now      func() time.Time
	logger   *zap.Logger

	state atomic.Int32

	// fetched accumulates every post id successfully fetched under a Filter
	// query this session. Touched only from the writer lane.
	fetched map[int64]bool

	baseCtx context.Context
	stop    context.CancelFunc
	ops     chan *opRequest
	done    chan struct{}
}

// NewExecutor creates an executor bound to query and starts its writer lane
func NewExecutor(query models.Query, opts Options) *Executor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	deadline := opts.RefreshDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	errSink := opts.ErrorSink
	if errSink == nil {
		errSink = func(error) {}
	}

	logger := logging.WithComponent("executor").
		With(zap.String("query", query.Fingerprint()[:8]))

	baseCtx, stop := context.WithCancel(context.Background())

	e := &Executor{
		query:    query,
		store:    opts.Store,
		api:      opts.API,
		lookups:  opts.Lookups,
		view:     newLiveView(),
		errSink:  errSink,
		expiry:   opts.Expiry,
		deadline: deadline,
		now:      now,
		logger:   logger,
		fetched:  make(map[int64]bool),
		baseCtx:  baseCtx,
		stop:     stop,
		ops:      make(chan *opRequest, 16),
		done:     make(chan struct{}),
	}
	e.resolver = NewResolver(opts.Store, opts.API, opts.MaxWorkers, now, logger)

	go e.run(baseCtx)

	return e
}

// Query returns the bound query
func (e *Executor) Query() models.Query {
	return e.query
}

// State returns the executor's current state
func (e *Executor) State() State {
	return State(e.state.Load())
}

// Close stops the writer lane. Queued operations fail with ErrClosed.
func (e *Executor) Close() {
	e.stop()
	<-e.done
	e.drain()
}

// run is the single writer lane: all store mutations and view switches for
// this executor happen here, in call order.
func (e *Executor) run(ctx context.Context) {
	defer close(e.done)

	// Serve whatever the cache holds before any network activity.
	if err := e.republish(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.report(err)
		// Publish an empty snapshot so waiters are not stuck on a store
		// that was down at bind time; the next successful operation
		// republishes the real one.
		e.view.publish(nil)
	}

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case o := <-e.ops:
			e.state.Store(int32(o.state))
			err := o.fn(o.ctx)
			e.state.Store(int32(StateIdle))

			// Release the per-op context; a completed op must not stay
			// registered on the executor's base context.
			o.handle.cancel()

			if err != nil && !errors.Is(err, context.Canceled) {
				e.report(err)
			}
			o.handle.finish(err)
		}
	}
}

func (e *Executor) drain() {
	for {
		select {
		case o := <-e.ops:
			o.handle.cancel()
			o.handle.finish(ErrClosed)
		default:
			return
		}
	}
}

func (e *Executor) report(err error) {
	e.logger.Error("Feed operation failed", zap.Error(err))
	e.errSink(err)
}

func (e *Executor) submit(state State, fn func(ctx context.Context) error) *Handle {
	opCtx, cancel := context.WithCancel(e.baseCtx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	if e.baseCtx.Err() != nil {
		cancel()
		h.finish(ErrClosed)
		return h
	}

	select {
	case e.ops <- &opRequest{state: state, ctx: opCtx, handle: h, fn: fn}:
	case <-e.baseCtx.Done():
		cancel()
		h.finish(ErrClosed)
	}
	return h
}

// RequestNewerPosts fetches page 1 for the bound query. The live view is
// switched to including-expired first so the list never flashes empty; on
// success it narrows back to non-expired, purging stale gaps so that
// subsequent older-post loads keep working. On failure the view stays in
// including-expired mode and the error goes to the error sink.
func (e *Executor) RequestNewerPosts() *Handle {
	return e.submit(StateRefreshingNewer, func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "feed.request_newer")
		defer span.End()

		e.view.setIncludeExpired(true)
		if err := e.republish(ctx); err != nil {
			return err
		}

		if err := withRetry(ctx, e.deadline, func(ctx context.Context) error {
			return e.fetchPage(ctx, time.Time{})
		}); err != nil {
			return err
		}

		e.view.setIncludeExpired(false)
		return e.republish(ctx)
	})
}

// RequestOlderPosts fetches the page immediately older than the oldest post
// currently visible. The view switches to including-expired and stays there:
// loading older pages must never evict anything already rendered, or the
// list would jump under a downward scroll.
func (e *Executor) RequestOlderPosts() *Handle {
	return e.submit(StateRefreshingOlder, func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "feed.request_older")
		defer span.End()

		e.view.setIncludeExpired(true)
		if err := e.republish(ctx); err != nil {
			return err
		}

		before := e.oldestVisible()

		if err := withRetry(ctx, e.deadline, func(ctx context.Context) error {
			return e.fetchPage(ctx, before)
		}); err != nil {
			return err
		}

		return e.republish(ctx)
	})
}

// Refresh re-fetches a single post by id and persists it. The view mode is
// untouched, and a Filter query's accumulation set does not grow: a post
// that no longer matches the filter is still persisted but must not start
// appearing in this executor's view.
func (e *Executor) Refresh(postID int64) *Handle {
	return e.submit(StateRefreshingOne, func(ctx context.Context) error {
		ctx, span := telemetry.StartSpan(ctx, "feed.refresh_one")
		defer span.End()

		if err := withRetry(ctx, e.deadline, func(ctx context.Context) error {
			posts, err := e.api.ListPosts(ctx, remote.PostListing{
				Page:    1,
				PostIDs: []int64{postID},
			})
			if err != nil {
				return err
			}
			return e.importPosts(ctx, posts, false)
		}); err != nil {
			return err
		}

		return e.republish(ctx)
	})
}

// DataImmediate blocks until the live view has produced at least one
// snapshot, then returns it. For callers that need one value without
// subscribing.
func (e *Executor) DataImmediate(ctx context.Context) ([]models.Post, error) {
	return e.view.wait(ctx)
}

// Subscribe returns a channel carrying the latest view snapshot and an
// unsubscribe function. The subscription survives view-mode swaps.
func (e *Executor) Subscribe() (<-chan []models.Post, func()) {
	return e.view.subscribe()
}

// fetchPage fetches one listing page, resolves its metadata and persists it
func (e *Executor) fetchPage(ctx context.Context, before time.Time) error {
	posts, err := e.api.ListPosts(ctx, remote.PostListing{
		Page:        1,
		Search:      e.query.Text,
		CategoryIDs: e.query.CategoryIDs,
		TagIDs:      e.query.TagIDs,
		PostIDs:     e.query.PostIDs,
		Before:      before,
	})
	if err != nil {
		return err
	}
	return e.importPosts(ctx, posts, !e.query.IsEmpty())
}

// importPosts persists a fetched batch: references first, then the posts,
// then each post's join rows
func (e *Executor) importPosts(ctx context.Context, posts []remote.Post, accumulate bool) error {
	if len(posts) == 0 {
		return nil
	}

	if err := e.resolver.Resolve(ctx, posts); err != nil {
		return err
	}

	cachedAt := e.now().UTC()
	rows := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, models.Post{
			ID:       p.ID,
			DateUTC:  p.DateUTC,
			AuthorID: p.AuthorID,
			Title:    p.Title,
			URL:      p.URL,
			Excerpt:  p.Excerpt,
			Content:  p.Content,
			CachedAt: cachedAt,
		})
	}
	if err := e.store.UpsertPosts(ctx, rows); err != nil {
		return fmt.Errorf("failed to persist posts: %w", err)
	}

	for _, p := range posts {
		if err := e.store.ReplaceTerms(ctx, p.ID, p.CategoryIDs, p.TagIDs); err != nil {
			return err
		}
	}

	if accumulate {
		for _, p := range posts {
			e.fetched[p.ID] = true
		}
	}

	e.logger.Debug("Imported post batch", zap.Int("count", len(posts)))

	return nil
}

// republish re-reads the store and pushes a fresh snapshot to the view
func (e *Executor) republish(ctx context.Context) error {
	var posts []models.Post
	var err error

	if e.query.IsEmpty() {
		var win Window
		win, err = SelectWindow(ctx, e.store, e.now().UTC(), e.expiry, e.view.IncludeExpired())
		if err != nil {
			return err
		}
		posts, err = e.store.VisiblePosts(ctx, win.MinPublished)
	} else {
		// Filtered membership cannot be recomputed from date windows: a
		// post may leave a category yet must stay visible if it was shown
		// under this query in this session.
		posts, err = e.store.PostsByIDs(ctx, e.fetchedIDs())
	}
	if err != nil {
		return err
	}

	e.view.publish(posts)
	return nil
}

func (e *Executor) fetchedIDs() []int64 {
	ids := make([]int64, 0, len(e.fetched))
	for id := range e.fetched {
		ids = append(ids, id)
	}
	return ids
}

// oldestVisible returns the publish date of the oldest post in the current
// snapshot, or the zero time when nothing is visible yet
func (e *Executor) oldestVisible() time.Time {
	snapshot := e.view.current()
	if len(snapshot) == 0 {
		return time.Time{}
	}
	// Snapshot is date-descending.
	return snapshot[len(snapshot)-1].DateUTC
}

// TagByID retrieves a tag that an imported post references
func (e *Executor) TagByID(ctx context.Context, id int64) (*models.Tag, error) {
	key := "tag:" + strconv.FormatInt(id, 10)
	var cached models.Tag
	if err := e.lookups.GetJSON(key, &cached); err == nil {
		return &cached, nil
	}

	tag, err := e.store.TagByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %d: %w", id, ErrNotCached)
	}

	if err := e.lookups.SetJSON(key, tag, lookupTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		e.logger.Warn("Failed to cache tag lookup", zap.Error(err))
	}
	return tag, nil
}

// CategoryByID retrieves a category that an imported post references
func (e *Executor) CategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	key := "category:" + strconv.FormatInt(id, 10)
	var cached models.Category
	if err := e.lookups.GetJSON(key, &cached); err == nil {
		return &cached, nil
	}

	category, err := e.store.CategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotCached)
	}

	if err := e.lookups.SetJSON(key, category, lookupTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		e.logger.Warn("Failed to cache category lookup", zap.Error(err))
	}
	return category, nil
}

// TagsForPost retrieves the tags joined to an imported post
func (e *Executor) TagsForPost(ctx context.Context, postID int64) ([]models.Tag, error) {
	if err := e.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	return e.store.TagsForPost(ctx, postID)
}

// CategoriesForPost retrieves the categories joined to an imported post
func (e *Executor) CategoriesForPost(ctx context.Context, postID int64) ([]models.Category, error) {
	if err := e.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	return e.store.CategoriesForPost(ctx, postID)
}

func (e *Executor) requirePost(ctx context.Context, postID int64) error {
	posts, err := e.store.PostsByIDs(ctx, []int64{postID})
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return fmt.Errorf("post %d: %w", postID, ErrNotCached)
	}
	return nil
}
