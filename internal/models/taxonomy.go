package models

import (
	"database/sql"
	"time"
)

// Category represents a server-assigned post category
type Category struct {
	ID       int64          `gorm:"primaryKey;autoIncrement:false;column:id"`
	Slug     string         `gorm:"type:varchar(200);not null;uniqueIndex:fs_categories_ux1;column:slug"`
	Name     string         `gorm:"type:varchar(200);not null;default:'';column:name"`
	ParentID sql.NullInt64  `gorm:"column:parent_id"`
	Count    int64          `gorm:"not null;default:0;column:count"`
	CachedAt time.Time      `gorm:"not null;column:cached_at" json:"-"`

	// Relationships
	Parent *Category `gorm:"foreignKey:ParentID;references:ID"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "fs_categories"
}

// Tag represents a server-assigned post tag
type Tag struct {
	ID       int64     `gorm:"primaryKey;autoIncrement:false;column:id"`
	Slug     string    `gorm:"type:varchar(200);not null;uniqueIndex:fs_tags_ux1;column:slug"`
	Name     string    `gorm:"type:varchar(200);not null;default:'';column:name"`
	Count    int64     `gorm:"not null;default:0;column:count"`
	CachedAt time.Time `gorm:"not null;column:cached_at" json:"-"`
}

// TableName specifies the table name for Tag
func (Tag) TableName() string {
	return "fs_tags"
}

// CategorySubscription marks a category the user wants push notifications for
type CategorySubscription struct {
	CategoryID int64     `gorm:"primaryKey;autoIncrement:false;column:category_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID;references:ID"`
}

// TableName specifies the table name for CategorySubscription
func (CategorySubscription) TableName() string {
	return "fs_category_subscriptions"
}

// TagSubscription marks a tag the user wants push notifications for
type TagSubscription struct {
	TagID     int64     `gorm:"primaryKey;autoIncrement:false;column:tag_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Tag *Tag `gorm:"foreignKey:TagID;references:ID"`
}

// TableName specifies the table name for TagSubscription
func (TagSubscription) TableName() string {
	return "fs_tag_subscriptions"
}
