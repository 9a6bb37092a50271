package models

import "time"

// Attachment links one stored file to exactly one post or comment. Exactly one of PostID and
// CommentID is set.
type Attachment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    *string   `gorm:"size:36;index" json:"post_id"`
	CommentID *string   `gorm:"size:36;index" json:"comment_id"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	FileKey   string    `gorm:"size:1024;not null" json:"file_key"`
	FileName  string    `gorm:"size:255" json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
