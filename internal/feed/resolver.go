package feed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pressline/feedsync/internal/models"
	"github.com/pressline/feedsync/internal/remote"
)

// Resolver imports the category, tag and user rows a batch of fetched posts
// references so that no post row is ever written ahead of its references.
type Resolver struct {
	store      Store
	api        ContentAPI
	maxWorkers int
	now        func() time.Time
	logger     *zap.Logger
}

// NewResolver creates a new metadata resolver
func NewResolver(store Store, api ContentAPI, maxWorkers int, now func() time.Time, logger *zap.Logger) *Resolver {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		store:      store,
		api:        api,
		maxWorkers: maxWorkers,
		now:        now,
		logger:     logger,
	}
}

// Resolve fetches and persists the referenced categories, tags and users
// that are absent locally. Missing tags and users are fetched by exact id
// in one batched call per kind; missing categories trigger a fetch of the
// complete category listing, which doubles as the browse catalogue and
// drives pruning of categories the server no longer lists.
func (r *Resolver) Resolve(ctx context.Context, posts []remote.Post) error {
	if len(posts) == 0 {
		return nil
	}

	var catRefs, tagRefs, userRefs []int64
	for _, p := range posts {
		catRefs = append(catRefs, p.CategoryIDs...)
		tagRefs = append(tagRefs, p.TagIDs...)
		if p.AuthorID != 0 {
			userRefs = append(userRefs, p.AuthorID)
		}
	}

	missingCats, err := r.store.MissingCategoryIDs(ctx, catRefs)
	if err != nil {
		return fmt.Errorf("failed to compute missing categories: %w", err)
	}
	missingTags, err := r.store.MissingTagIDs(ctx, tagRefs)
	if err != nil {
		return fmt.Errorf("failed to compute missing tags: %w", err)
	}
	missingUsers, err := r.store.MissingUserIDs(ctx, userRefs)
	if err != nil {
		return fmt.Errorf("failed to compute missing users: %w", err)
	}

	var (
		categories []remote.Category
		tags       []remote.Tag
		users      []remote.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxWorkers)

	if len(missingCats) > 0 {
		g.Go(func() error {
			// Always the full listing, never just the missing ids.
			listed, err := r.api.ListCategories(gctx, nil)
			if err != nil {
				return err
			}
			categories = listed
			return nil
		})
	}
	if len(missingTags) > 0 {
		g.Go(func() error {
			listed, err := r.api.ListTags(gctx, missingTags)
			if err != nil {
				return err
			}
			tags = listed
			return nil
		})
	}
	if len(missingUsers) > 0 {
		g.Go(func() error {
			listed, err := r.api.ListUsers(gctx, missingUsers)
			if err != nil {
				return err
			}
			users = listed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	cachedAt := r.now().UTC()

	if len(categories) > 0 {
		rows := make([]models.Category, 0, len(categories))
		keep := make([]int64, 0, len(categories))
		for _, c := range categories {
			row := models.Category{
				ID:       c.ID,
				Slug:     c.Slug,
				Name:     c.Name,
				Count:    c.Count,
				CachedAt: cachedAt,
			}
			if c.ParentID != 0 {
				row.ParentID = sql.NullInt64{Int64: c.ParentID, Valid: true}
			}
			rows = append(rows, row)
			keep = append(keep, c.ID)
		}
		if err := r.store.UpsertCategories(ctx, rows); err != nil {
			return fmt.Errorf("failed to persist categories: %w", err)
		}
		if err := r.store.PruneCategoriesExcept(ctx, keep); err != nil {
			return fmt.Errorf("failed to prune categories: %w", err)
		}
	}

	if len(tags) > 0 {
		rows := make([]models.Tag, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, models.Tag{
				ID:       t.ID,
				Slug:     t.Slug,
				Name:     t.Name,
				Count:    t.Count,
				CachedAt: cachedAt,
			})
		}
		if err := r.store.UpsertTags(ctx, rows); err != nil {
			return fmt.Errorf("failed to persist tags: %w", err)
		}
	}

	if len(users) > 0 {
		rows := make([]models.User, 0, len(users))
		for _, u := range users {
			rows = append(rows, models.User{
				ID:          u.ID,
				Slug:        u.Slug,
				Name:        u.Name,
				Description: u.Description,
				AvatarURL:   u.AvatarURL,
				CachedAt:    cachedAt,
			})
		}
		if err := r.store.UpsertUsers(ctx, rows); err != nil {
			return fmt.Errorf("failed to persist users: %w", err)
		}
	}

	r.logger.Debug("Resolved post metadata",
		zap.Int("posts", len(posts)),
		zap.Int("missing_categories", len(missingCats)),
		zap.Int("missing_tags", len(missingTags)),
		zap.Int("missing_users", len(missingUsers)))

	return nil
}
