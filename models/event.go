package models

import "time"

// Event is a calendar entry such as a live session or an assignment deadline.
type Event struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	StartTime   time.Time  `gorm:"index;not null" json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	EventLink   string     `gorm:"size:1024" json:"event_link"`
	EventType   string     `gorm:"size:32;index;not null;default:'live-session'" json:"event_type"`
	CreatedBy   uint       `gorm:"index;not null" json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	User        User       `gorm:"foreignKey:CreatedBy" json:"-"`
}
