package models

import (
	"time"
)

// User represents a post author fetched from the remote content API
type User struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false;column:id"`
	Slug        string    `gorm:"type:varchar(200);not null;uniqueIndex:fs_users_ux1;column:slug"`
	Name        string    `gorm:"type:varchar(200);not null;default:'';column:name"`
	Description string    `gorm:"type:text;not null;default:'';column:description"`
	AvatarURL   string    `gorm:"type:varchar(1024);not null;default:'';column:avatar_url"`
	CachedAt    time.Time `gorm:"not null;column:cached_at" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "fs_users"
}
