package models

import (
	"time"
)

// Post represents a cached article from the remote content API
type Post struct {
	ID       int64     `gorm:"primaryKey;autoIncrement:false;column:id"`
	DateUTC  time.Time `gorm:"not null;index:fs_posts_ix1;column:date_utc"`
	AuthorID int64     `gorm:"not null;column:author_id"`
	Title    string    `gorm:"type:varchar(512);not null;default:'';column:title"`
	URL      string    `gorm:"type:varchar(1024);not null;default:'';column:url"`
	Excerpt  string    `gorm:"type:text;not null;default:'';column:excerpt"`
	Content  string    `gorm:"type:text;not null;default:'';column:content"`

	// CachedAt is the local cache-insertion time, not the publish date.
	// It only drives expiry bookkeeping and is never exposed upstream.
	CachedAt time.Time `gorm:"not null;index:fs_posts_ix2;column:cached_at" json:"-"`

	// Relationships
	Author *User `gorm:"foreignKey:AuthorID;references:ID"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "fs_posts"
}

// PostCategory represents a post-to-category mapping
type PostCategory struct {
	PostID     int64 `gorm:"primaryKey;column:post_id"`
	CategoryID int64 `gorm:"primaryKey;column:category_id"`
}

// TableName specifies the table name for PostCategory
func (PostCategory) TableName() string {
	return "fs_post_categories"
}

// PostTag represents a post-to-tag mapping
type PostTag struct {
	PostID int64 `gorm:"primaryKey;column:post_id"`
	TagID  int64 `gorm:"primaryKey;column:tag_id"`
}

// TableName specifies the table name for PostTag
func (PostTag) TableName() string {
	return "fs_post_tags"
}
