package models

import "time"

// Comment is a reply to a post, optionally threaded under another comment.
type Comment struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	PostID          string     `gorm:"size:36;index;not null" json:"post_id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	ParentCommentID *string    `gorm:"size:36;index" json:"parent_comment_id"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	CreatedAt       time.Time  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
	DeletedAt       *time.Time `gorm:"index" json:"deleted_at"`
	User            User       `gorm:"foreignKey:UserID" json:"-"`
}
