package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pressline/feedsync/internal/models"
	"github.com/pressline/feedsync/internal/remote"
)

// fakeStore is an in-memory Store for executor and resolver tests.
type fakeStore struct {
	mu sync.Mutex

	posts      map[int64]models.Post
	categories map[int64]models.Category
	tags       map[int64]models.Tag
	users      map[int64]models.User
	postCats   map[int64][]int64
	postTags   map[int64][]int64

	pruneKeep  [][]int64
	purged     []time.Time
	failReads  error
	failWrites error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:      make(map[int64]models.Post),
		categories: make(map[int64]models.Category),
		tags:       make(map[int64]models.Tag),
		users:      make(map[int64]models.User),
		postCats:   make(map[int64][]int64),
		postTags:   make(map[int64][]int64),
	}
}

func (s *fakeStore) seedPost(p models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

func (s *fakeStore) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func sortByDateDesc(posts []models.Post) {
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].DateUTC.After(posts[j].DateUTC)
	})
}

func (s *fakeStore) VisiblePosts(_ context.Context, minPublished time.Time) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	var out []models.Post
	for _, p := range s.posts {
		if !p.DateUTC.Before(minPublished) {
			out = append(out, p)
		}
	}
	sortByDateDesc(out)
	return out, nil
}

func (s *fakeStore) PostsByIDs(_ context.Context, ids []int64) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	var out []models.Post
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, p)
		}
	}
	sortByDateDesc(out)
	return out, nil
}

func (s *fakeStore) NewestExpiredPublishDate(_ context.Context, insertCutoff time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return time.Time{}, s.failReads
	}
	var newest time.Time
	for _, p := range s.posts {
		if p.CachedAt.Before(insertCutoff) && p.DateUTC.After(newest) {
			newest = p.DateUTC
		}
	}
	return newest, nil
}

func (s *fakeStore) UpsertPosts(_ context.Context, posts []models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	return nil
}

func (s *fakeStore) ReplaceTerms(_ context.Context, postID int64, categoryIDs, tagIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	s.postCats[postID] = append([]int64(nil), categoryIDs...)
	s.postTags[postID] = append([]int64(nil), tagIDs...)
	return nil
}

func (s *fakeStore) UpsertCategories(_ context.Context, categories []models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	for _, c := range categories {
		s.categories[c.ID] = c
	}
	return nil
}

func (s *fakeStore) UpsertTags(_ context.Context, tags []models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	for _, t := range tags {
		s.tags[t.ID] = t
	}
	return nil
}

func (s *fakeStore) UpsertUsers(_ context.Context, users []models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return nil
}

func (s *fakeStore) PruneCategoriesExcept(_ context.Context, keep []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	keepSet := make(map[int64]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	for id := range s.categories {
		if !keepSet[id] {
			delete(s.categories, id)
		}
	}
	s.pruneKeep = append(s.pruneKeep, append([]int64(nil), keep...))
	return nil
}

func (s *fakeStore) missing(ids []int64, has func(int64) bool) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, id := range ids {
		if seen[id] || has(id) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *fakeStore) MissingCategoryIDs(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	return s.missing(ids, func(id int64) bool { _, ok := s.categories[id]; return ok }), nil
}

func (s *fakeStore) MissingTagIDs(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	return s.missing(ids, func(id int64) bool { _, ok := s.tags[id]; return ok }), nil
}

func (s *fakeStore) MissingUserIDs(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	return s.missing(ids, func(id int64) bool { _, ok := s.users[id]; return ok }), nil
}

func (s *fakeStore) CategoryByID(_ context.Context, id int64) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	if c, ok := s.categories[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *fakeStore) TagByID(_ context.Context, id int64) (*models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	if t, ok := s.tags[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *fakeStore) CategoriesForPost(_ context.Context, postID int64) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	var out []models.Category
	for _, id := range s.postCats[postID] {
		if c, ok := s.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) TagsForPost(_ context.Context, postID int64) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, s.failReads
	}
	var out []models.Tag
	for _, id := range s.postTags[postID] {
		if t, ok := s.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) PurgeExpired(_ context.Context, insertCutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return 0, s.failWrites
	}
	s.purged = append(s.purged, insertCutoff)
	var n int64
	for id, p := range s.posts {
		if p.CachedAt.Before(insertCutoff) {
			delete(s.posts, id)
			n++
		}
	}
	return n, nil
}

// fakeAPI is a scripted ContentAPI.
type fakeAPI struct {
	mu sync.Mutex

	// posts returned by ListPosts once failures are used up
	posts []remote.Post
	// postsFn overrides posts when set
	postsFn func(listing remote.PostListing) []remote.Post
	// failures makes the next N ListPosts calls fail with a transport error
	failures int

	categories []remote.Category
	tags       map[int64]remote.Tag
	users      map[int64]remote.User

	listings      []remote.PostListing
	lastCtx       context.Context
	categoryCalls [][]int64
	tagCalls      [][]int64
	userCalls     [][]int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tags:  make(map[int64]remote.Tag),
		users: make(map[int64]remote.User),
	}
}

func transportErr() error {
	return &remote.Error{Kind: remote.KindTransport, Op: "list posts", Err: context.DeadlineExceeded}
}

func (a *fakeAPI) ListPosts(ctx context.Context, listing remote.PostListing) ([]remote.Post, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listings = append(a.listings, listing)
	a.lastCtx = ctx
	if a.failures > 0 {
		a.failures--
		return nil, transportErr()
	}
	if a.postsFn != nil {
		return a.postsFn(listing), nil
	}
	return a.posts, nil
}

func (a *fakeAPI) ListCategories(_ context.Context, ids []int64) ([]remote.Category, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.categoryCalls = append(a.categoryCalls, ids)
	return a.categories, nil
}

func (a *fakeAPI) ListTags(_ context.Context, ids []int64) ([]remote.Tag, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tagCalls = append(a.tagCalls, ids)
	var out []remote.Tag
	for _, id := range ids {
		if t, ok := a.tags[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (a *fakeAPI) ListUsers(_ context.Context, ids []int64) ([]remote.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userCalls = append(a.userCalls, ids)
	var out []remote.User
	for _, id := range ids {
		if u, ok := a.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (a *fakeAPI) listPostCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listings)
}
