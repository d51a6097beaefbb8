package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pressline/feedsync/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// VisiblePosts retrieves posts whose publish date is at or after minPublished,
// newest first. A zero minPublished places no bound. This is the single
// windowed read primitive; the window selector owns the parameter.
func (r *PostRepository) VisiblePosts(ctx context.Context, minPublished time.Time) ([]models.Post, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if !minPublished.IsZero() {
		q = q.Where("date_utc >= ?", minPublished)
	}

	var posts []models.Post
	if err := q.Order("date_utc DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// PostsByIDs retrieves the given posts, newest first
func (r *PostRepository) PostsByIDs(ctx context.Context, ids []int64) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("date_utc DESC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// NewestExpiredPublishDate returns the most recent publish date among posts
// whose cache-insertion time precedes insertCutoff, or the zero time if no
// such post exists. It anchors the expiry-gap threshold.
func (r *PostRepository) NewestExpiredPublishDate(ctx context.Context, insertCutoff time.Time) (time.Time, error) {
	var newest sql.NullTime
	row := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("cached_at < ?", insertCutoff).
		Select("MAX(date_utc)").
		Row()
	if err := row.Scan(&newest); err != nil {
		return time.Time{}, err
	}
	if !newest.Valid {
		return time.Time{}, nil
	}
	return newest.Time.UTC(), nil
}

// UpsertPosts inserts posts that are absent and updates the rest in place.
// Never a destructive replace: join rows referencing the post survive.
func (r *PostRepository) UpsertPosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&posts).Error
}

// ReplaceTerms replaces a post's category and tag join rows with the given
// sets, all or nothing
func (r *PostRepository) ReplaceTerms(ctx context.Context, postID int64, categoryIDs, tagIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostCategory{}).Error; err != nil {
			return fmt.Errorf("failed to clear post categories: %w", err)
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
			return fmt.Errorf("failed to clear post tags: %w", err)
		}

		for _, id := range categoryIDs {
			if err := tx.Create(&models.PostCategory{PostID: postID, CategoryID: id}).Error; err != nil {
				return fmt.Errorf("failed to link category %d: %w", id, err)
			}
		}
		for _, id := range tagIDs {
			if err := tx.Create(&models.PostTag{PostID: postID, TagID: id}).Error; err != nil {
				return fmt.Errorf("failed to link tag %d: %w", id, err)
			}
		}
		return nil
	})
}

// PurgeExpired deletes posts cached before floor, along with their join rows.
// Returns the number of posts removed.
func (r *PostRepository) PurgeExpired(ctx context.Context, floor time.Time) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&models.Post{}).
			Where("cached_at < ?", floor).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("post_id IN ?", ids).Delete(&models.PostCategory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", ids).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ?", ids).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	return purged, err
}

// TaxonomyRepository provides category, tag and subscription operations
type TaxonomyRepository struct {
	*Repository
}

// NewTaxonomyRepository creates a new taxonomy repository
func NewTaxonomyRepository(repo *Repository) *TaxonomyRepository {
	return &TaxonomyRepository{Repository: repo}
}

// UpsertCategories inserts or updates categories in place
func (r *TaxonomyRepository) UpsertCategories(ctx context.Context, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&categories).Error
}

// UpsertTags inserts or updates tags in place
func (r *TaxonomyRepository) UpsertTags(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&tags).Error
}

// PruneCategoriesExcept deletes categories absent from keep, along with
// their join rows and subscription markers. Used after a full listing.
func (r *TaxonomyRepository) PruneCategoriesExcept(ctx context.Context, keep []int64) error {
	if len(keep) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gone []int64
		if err := tx.Model(&models.Category{}).
			Where("id NOT IN ?", keep).
			Pluck("id", &gone).Error; err != nil {
			return err
		}
		if len(gone) == 0 {
			return nil
		}

		if err := tx.Where("category_id IN ?", gone).Delete(&models.PostCategory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id IN ?", gone).Delete(&models.CategorySubscription{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", gone).Delete(&models.Category{}).Error
	})
}

// MissingCategoryIDs returns the subset of ids with no local category row
func (r *TaxonomyRepository) MissingCategoryIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return r.missingIDs(ctx, &models.Category{}, ids)
}

// MissingTagIDs returns the subset of ids with no local tag row
func (r *TaxonomyRepository) MissingTagIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return r.missingIDs(ctx, &models.Tag{}, ids)
}

// CategoryByID retrieves a category by ID
func (r *TaxonomyRepository) CategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// TagByID retrieves a tag by ID
func (r *TaxonomyRepository) TagByID(ctx context.Context, id int64) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// CategoriesForPost retrieves the categories joined to a post
func (r *TaxonomyRepository) CategoriesForPost(ctx context.Context, postID int64) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).
		Joins("JOIN fs_post_categories pc ON pc.category_id = fs_categories.id").
		Where("pc.post_id = ?", postID).
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// TagsForPost retrieves the tags joined to a post
func (r *TaxonomyRepository) TagsForPost(ctx context.Context, postID int64) ([]models.Tag, error) {
	var tags []models.Tag
	if err := r.db.WithContext(ctx).
		Joins("JOIN fs_post_tags pt ON pt.tag_id = fs_tags.id").
		Where("pt.post_id = ?", postID).
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// SubscribedCategorySlugs returns the slugs of categories with a
// subscription marker
func (r *TaxonomyRepository) SubscribedCategorySlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Joins("JOIN fs_category_subscriptions cs ON cs.category_id = fs_categories.id").
		Pluck("fs_categories.slug", &slugs).Error; err != nil {
		return nil, err
	}
	return slugs, nil
}

// SubscribedTagSlugs returns the slugs of tags with a subscription marker
func (r *TaxonomyRepository) SubscribedTagSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := r.db.WithContext(ctx).
		Model(&models.Tag{}).
		Joins("JOIN fs_tag_subscriptions ts ON ts.tag_id = fs_tags.id").
		Pluck("fs_tags.slug", &slugs).Error; err != nil {
		return nil, err
	}
	return slugs, nil
}

// ReplaceSubscriptions replaces all subscription markers with the given sets
func (r *TaxonomyRepository) ReplaceSubscriptions(ctx context.Context, categoryIDs, tagIDs []int64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CategorySubscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.TagSubscription{}).Error; err != nil {
			return err
		}

		for _, id := range categoryIDs {
			if err := tx.Create(&models.CategorySubscription{CategoryID: id, CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("failed to subscribe category %d: %w", id, err)
			}
		}
		for _, id := range tagIDs {
			if err := tx.Create(&models.TagSubscription{TagID: id, CreatedAt: now}).Error; err != nil {
				return fmt.Errorf("failed to subscribe tag %d: %w", id, err)
			}
		}
		return nil
	})
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// UpsertUsers inserts or updates users in place
func (r *UserRepository) UpsertUsers(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&users).Error
}

// MissingUserIDs returns the subset of ids with no local user row
func (r *UserRepository) MissingUserIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return r.missingIDs(ctx, &models.User{}, ids)
}

// missingIDs returns the ids from want that have no row in the model's table
func (r *Repository) missingIDs(ctx context.Context, model interface{}, want []int64) ([]int64, error) {
	if len(want) == 0 {
		return nil, nil
	}

	var present []int64
	if err := r.db.WithContext(ctx).
		Model(model).
		Where("id IN ?", want).
		Pluck("id", &present).Error; err != nil {
		return nil, err
	}

	have := make(map[int64]bool, len(present))
	for _, id := range present {
		have[id] = true
	}

	seen := make(map[int64]bool, len(want))
	var missing []int64
	for _, id := range want {
		if have[id] || seen[id] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	return missing, nil
}

// Store aggregates the repositories into the single surface the feed
// executor, push handler and janitor consume
type Store struct {
	*PostRepository
	*TaxonomyRepository
	*UserRepository
}

// NewStore creates a store over an open database connection
func NewStore(database *DB) *Store {
	repo := NewRepository(database.DB)
	return &Store{
		PostRepository:     NewPostRepository(repo),
		TaxonomyRepository: NewTaxonomyRepository(repo),
		UserRepository:     NewUserRepository(repo),
	}
}
