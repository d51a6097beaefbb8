package feed

import (
	"context"
	"time"

	"github.com/pressline/feedsync/internal/models"
	"github.com/pressline/feedsync/internal/remote"
)

// Store is the persistent store surface the executor and resolver consume.
// *db.Store satisfies it.
type Store interface {
	// VisiblePosts is the single windowed read primitive; the window
	// selector owns its parameter. A zero minPublished reads everything.
	VisiblePosts(ctx context.Context, minPublished time.Time) ([]models.Post, error)
	PostsByIDs(ctx context.Context, ids []int64) ([]models.Post, error)
	NewestExpiredPublishDate(ctx context.Context, insertCutoff time.Time) (time.Time, error)

	UpsertPosts(ctx context.Context, posts []models.Post) error
	ReplaceTerms(ctx context.Context, postID int64, categoryIDs, tagIDs []int64) error

	UpsertCategories(ctx context.Context, categories []models.Category) error
	UpsertTags(ctx context.Context, tags []models.Tag) error
	UpsertUsers(ctx context.Context, users []models.User) error
	PruneCategoriesExcept(ctx context.Context, keep []int64) error

	MissingCategoryIDs(ctx context.Context, ids []int64) ([]int64, error)
	MissingTagIDs(ctx context.Context, ids []int64) ([]int64, error)
	MissingUserIDs(ctx context.Context, ids []int64) ([]int64, error)

	CategoryByID(ctx context.Context, id int64) (*models.Category, error)
	TagByID(ctx context.Context, id int64) (*models.Tag, error)
	CategoriesForPost(ctx context.Context, postID int64) ([]models.Category, error)
	TagsForPost(ctx context.Context, postID int64) ([]models.Tag, error)
}

// ContentAPI is the remote content API surface. *remote.Client satisfies it.
type ContentAPI interface {
	ListPosts(ctx context.Context, listing remote.PostListing) ([]remote.Post, error)
	ListCategories(ctx context.Context, ids []int64) ([]remote.Category, error)
	ListTags(ctx context.Context, ids []int64) ([]remote.Tag, error)
	ListUsers(ctx context.Context, ids []int64) ([]remote.User, error)
}
