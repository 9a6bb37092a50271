package models

import "time"

// Post is a top-level community post. DeletedAt is managed by the content store, not by gorm,
// so that tombstoned rows stay readable for replies and idempotent deletes.
type Post struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	Title     string     `gorm:"size:255" json:"title"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Category  string     `gorm:"size:32;index;default:'general'" json:"category"`
	IsPinned  bool       `gorm:"not null;default:false" json:"is_pinned"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}
