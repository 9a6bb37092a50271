package models

import "time"

// Notification is an in-app message for a single user.
type Notification struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	Type        string     `gorm:"size:32;not null" json:"type"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Content     string     `gorm:"type:text" json:"content"`
	RelatedID   string     `gorm:"size:36" json:"related_id"`
	RelatedType string     `gorm:"size:16" json:"related_type"`
	IsRead      bool       `gorm:"index;not null;default:false" json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}
