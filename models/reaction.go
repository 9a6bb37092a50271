package models

import "time"

// Reaction is a user's reaction to a post or a comment.
type Reaction struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    *string   `gorm:"size:36;index" json:"post_id"`
	CommentID *string   `gorm:"size:36;index" json:"comment_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"size:16;default:'like'" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
